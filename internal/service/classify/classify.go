// Package classify tells mobile clients from browsers by request headers.
package classify

import (
	"net/http"
	"strings"

	"github.com/nkiryanov/authcore/internal/models"
)

const (
	HeaderClientType     = "X-Client-Type"
	HeaderPlatform       = "X-Platform"
	HeaderClientPlatform = "X-Client-Platform"
)

// User-Agent fragments of native HTTP stacks and mobile frameworks, matched lower case
var mobileSignatures = []string{
	"okhttp",
	"dalvik",
	"cfnetwork",
	"darwin",
	"expo",
	"reactnative",
	"react-native",
	"flutter",
	"dart/",
	"alamofire",
	"mobile app",
}

var mobilePlatforms = map[string]bool{
	"ios":     true,
	"android": true,
}

// Classify returns client type for the request headers.
//
// Explicit X-Client-Type wins. Then User-Agent signatures, then platform headers.
// Anything else is a browser.
func Classify(h http.Header) models.ClientType {
	switch ct := models.ClientType(strings.ToLower(strings.TrimSpace(h.Get(HeaderClientType)))); ct {
	case models.ClientWeb, models.ClientMobile:
		return ct
	}

	ua := strings.ToLower(h.Get("User-Agent"))
	for _, sig := range mobileSignatures {
		if strings.Contains(ua, sig) {
			return models.ClientMobile
		}
	}

	for _, name := range []string{HeaderPlatform, HeaderClientPlatform} {
		if mobilePlatforms[strings.ToLower(strings.TrimSpace(h.Get(name)))] {
			return models.ClientMobile
		}
	}

	return models.ClientWeb
}
