package report

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// SauceLabsBaseURL is the job page root on SauceLabs.
const SauceLabsBaseURL = "https://app.saucelabs.com/tests/"

// SauceLabsLink returns a shareable link to a SauceLabs job. The auth token
// is the hex HMAC-MD5 of the session id keyed with "user:accessKey", which
// lets the page open without a SauceLabs login.
func SauceLabsLink(username, accessKey, sessionID string) string {
	mac := hmac.New(md5.New, []byte(username+":"+accessKey))
	mac.Write([]byte(sessionID))
	return fmt.Sprintf("%s%s?auth=%s", SauceLabsBaseURL, sessionID, hex.EncodeToString(mac.Sum(nil)))
}
