// Package testdata generates throwaway test data: unique emails, mobile
// numbers that pass the marketplace's validation, and display prices.
package testdata

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/devicelab-dev/mobile-e2e/pkg/core"
	"github.com/devicelab-dev/mobile-e2e/pkg/logger"
)

// MaxMobileAttempts bounds RandomMobileNumber's retries.
const MaxMobileAttempts = 5

// EmailDomain is the mailbox domain for generated addresses.
const EmailDomain = "propertyguru.com"

// mobilePlans describes local number shapes per region: a fixed prefix
// followed by a number of random digits.
var mobilePlans = map[string]struct {
	prefix string
	digits int
}{
	"sg": {"85", 6},   // 85xx xxxx
	"my": {"0102", 6}, // 010-2xx xxxx
	"th": {"02", 7},   // 02xxx xxxx
}

// Generator produces random values. The zero value uses the global source
// and the wall clock.
type Generator struct {
	Rand *rand.Rand
	Now  func() time.Time
}

// New returns a Generator with the default source.
func New() *Generator {
	return &Generator{Now: time.Now}
}

func (g *Generator) intN(n int) int {
	if g.Rand != nil {
		return g.Rand.IntN(n)
	}
	return rand.IntN(n)
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// RandomNumberOfLength returns a number with exactly length digits.
func (g *Generator) RandomNumberOfLength(length int) int {
	if length <= 0 {
		return 0
	}
	low := 1
	for i := 1; i < length; i++ {
		low *= 10
	}
	return low + g.intN(low*9)
}

// RandomEmail returns mobile<timestamp><3 digits>@propertyguru.com.
func (g *Generator) RandomEmail() string {
	email := fmt.Sprintf("mobile%s%d@%s", g.now().Format("20060102150405"), 100+g.intN(900), EmailDomain)
	logger.Debug("generated email %s", email)
	return email
}

// RandomMobileNumber returns a local mobile number (no country code) for
// region ("sg", "my" or "th"). Candidates are checked against the region's
// numbering plan; after MaxMobileAttempts the last candidate is returned.
func (g *Generator) RandomMobileNumber(region string) (string, error) {
	region = strings.ToLower(region)
	plan, ok := mobilePlans[region]
	if !ok {
		return "", core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unsupported mobile region %q", region))
	}

	code := strings.ToUpper(region)
	var number string
	for i := 0; i < MaxMobileAttempts; i++ {
		number = plan.prefix + strconv.Itoa(g.RandomNumberOfLength(plan.digits))
		if isValidMobile(number, code) {
			logger.Debug("generated mobile number %s", number)
			return number, nil
		}
	}
	logger.Warn("mobile number %s not valid for %s after %d attempts", number, code, MaxMobileAttempts)
	return number, nil
}

func isValidMobile(number, region string) bool {
	num, err := phonenumbers.Parse(number, region)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumberForRegion(num, region)
}

// IsValidMobile reports whether number is a valid local number for region.
func IsValidMobile(number, region string) bool {
	return isValidMobile(number, strings.ToUpper(region))
}

// ParsePrice converts a displayed price such as "1,700" to 1700.
func ParsePrice(price string) (int, error) {
	n, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(price), ",", ""))
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", price, err)
	}
	return n, nil
}

var pricePrinter = message.NewPrinter(language.English)

// FormatPrice renders price with thousands separators (1700 → "1,700").
func FormatPrice(price int) string {
	return pricePrinter.Sprintf("%d", price)
}
