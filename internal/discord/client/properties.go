package client

import (
	"encoding/base64"
	"fmt"

	"github.com/bytedance/sonic"
)

// SuperProperties identifies the client to Discord through the X-Super-Properties header.
type SuperProperties struct {
	OS                     string  `json:"os"`
	Browser                string  `json:"browser"`
	Device                 string  `json:"device"`
	BrowserUserAgent       string  `json:"browser_user_agent"`
	BrowserVersion         string  `json:"browser_version"`
	OSVersion              string  `json:"os_version"`
	Referrer               string  `json:"referrer"`
	ReferringDomain        string  `json:"referring_domain"`
	ReferrerCurrent        string  `json:"referrer_current"`
	ReferringDomainCurrent string  `json:"referring_domain_current"`
	ReleaseChannel         string  `json:"release_channel"`
	SystemLocale           string  `json:"system_locale"`
	ClientBuildNumber      int     `json:"client_build_number"`
	ClientEventSource      *string `json:"client_event_source"`
}

// DefaultSuperProperties returns properties of a desktop Chrome client.
func DefaultSuperProperties(userAgent, browserVersion, locale string, buildNumber int) SuperProperties {
	return SuperProperties{
		OS:                "Windows",
		Browser:           "Chrome",
		BrowserUserAgent:  userAgent,
		BrowserVersion:    browserVersion,
		OSVersion:         "10",
		ReleaseChannel:    "stable",
		SystemLocale:      locale,
		ClientBuildNumber: buildNumber,
	}
}

// Encode returns the base64 JSON form sent in the header.
func (p SuperProperties) Encode() (string, error) {
	data, err := sonic.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode super properties: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// ContextLocation names the UI location an action was performed from.
type ContextLocation string

const (
	LocationFriends     ContextLocation = "Friends"
	LocationContextMenu ContextLocation = "ContextMenu"
	LocationUserProfile ContextLocation = "User Profile"
	LocationAddFriend   ContextLocation = "Add Friend"
	LocationGuildHeader ContextLocation = "Guild Header"
	LocationGroupDM     ContextLocation = "Group DM"
	LocationDMChannel   ContextLocation = "DM Channel"
	LocationApp         ContextLocation = "/app"
	LocationLogin       ContextLocation = "Login"
)

// ContextProperties is the X-Context-Properties header value for one call.
type ContextProperties struct {
	value string
}

// EmptyContext returns context properties with no location.
func EmptyContext() *ContextProperties {
	return newContextProperties(map[string]any{})
}

// FromLocation returns context properties for a UI location.
func FromLocation(location ContextLocation) *ContextProperties {
	return newContextProperties(map[string]any{"location": string(location)})
}

func newContextProperties(data map[string]any) *ContextProperties {
	encoded, err := sonic.Marshal(data)
	if err != nil {
		// A string map always encodes
		encoded = []byte("{}")
	}
	return &ContextProperties{value: base64.StdEncoding.EncodeToString(encoded)}
}

// String returns the encoded header value.
func (c *ContextProperties) String() string {
	return c.value
}
