// Package steps holds the generic step definitions shared by every feature.
// String arguments are expanded through the JS engine, so a step can read
// earlier values: When I enter "${scenario.get('email')}" into "~email".
package steps

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cucumber/godog"

	"github.com/devicelab-dev/mobile-e2e/pkg/actions"
	"github.com/devicelab-dev/mobile-e2e/pkg/core"
	"github.com/devicelab-dev/mobile-e2e/pkg/database"
	"github.com/devicelab-dev/mobile-e2e/pkg/datastore"
	"github.com/devicelab-dev/mobile-e2e/pkg/datetime"
	"github.com/devicelab-dev/mobile-e2e/pkg/jsengine"
	"github.com/devicelab-dev/mobile-e2e/pkg/testdata"
)

// Deps are the collaborators the steps use. DB is optional; database steps
// fail when it is nil.
type Deps struct {
	Device   core.Device
	Store    *datastore.Store
	Engine   *jsengine.Engine
	Dates    *datetime.Formatter
	Data     *testdata.Generator
	Timezone string // Marketplace timezone for date steps
	DB       *database.Client
}

type library struct {
	Deps
	scroller *actions.Scroller
}

func newLibrary(deps Deps) *library {
	if deps.Store == nil {
		deps.Store = datastore.New()
	}
	if deps.Engine == nil {
		deps.Engine = jsengine.New(deps.Store, nil)
	}
	if deps.Dates == nil {
		deps.Dates = datetime.New("")
	}
	if deps.Data == nil {
		deps.Data = testdata.New()
	}
	return &library{Deps: deps, scroller: actions.NewScroller(deps.Device)}
}

// Register binds the step library to sc.
func Register(sc *godog.ScenarioContext, deps Deps) {
	l := newLibrary(deps)

	// Interaction
	sc.Step(`^I tap "([^"]*)"$`, l.tap)
	sc.Step(`^I enter "([^"]*)" into "([^"]*)"$`, l.enter)
	sc.Step(`^I press (enter|next|search|back)$`, l.press)
	sc.Step(`^I scroll (up|down) until I see "([^"]*)"$`, l.scrollUntilVisible)
	sc.Step(`^I open the deep link "([^"]*)"$`, l.openDeepLink)
	sc.Step(`^I allow notification access$`, l.allowNotifications)
	sc.Step(`^I restart the app$`, l.restartApp)

	// Assertions
	sc.Step(`^I should see "([^"]*)"$`, l.shouldSee)
	sc.Step(`^I should not see "([^"]*)"$`, l.shouldNotSee)
	sc.Step(`^I should see at least one "([^"]*)"$`, l.shouldSeeAny)
	sc.Step(`^"([^"]*)" should have text "([^"]*)"$`, l.shouldHaveText)
	sc.Step(`^the stored value "([^"]*)" should be "([^"]*)"$`, l.storedValueShouldBe)

	// Scenario data
	sc.Step(`^I store "([^"]*)" as "([^"]*)"$`, l.storeValue)
	sc.Step(`^I store the text of "([^"]*)" as "([^"]*)"$`, l.storeText)
	sc.Step(`^I store a random email as "([^"]*)"$`, l.storeRandomEmail)
	sc.Step(`^I store a random (sg|my|th) mobile number as "([^"]*)"$`, l.storeRandomMobile)
	sc.Step(`^I store the date (-?\d+) days from today as "([^"]*)"$`, l.storeDate)
	sc.Step(`^I store column "([^"]*)" of the query "([^"]*)" as "([^"]*)"$`, l.storeQueryColumn)
}

func (l *library) expand(s string) string {
	return l.Engine.ExpandVariables(s)
}

func (l *library) tap(ctx context.Context, selector string) error {
	return actions.WaitAndClick(ctx, l.Device, l.expand(selector))
}

func (l *library) enter(ctx context.Context, value, selector string) error {
	return actions.WaitAndSetValue(ctx, l.Device, l.expand(selector), l.expand(value))
}

func (l *library) press(ctx context.Context, key string) error {
	switch key {
	case "enter":
		return actions.EnterOrConfirm(ctx, l.Device)
	case "next":
		return actions.Next(ctx, l.Device)
	case "search":
		return actions.Search(ctx, l.Device)
	default:
		return actions.AndroidBack(ctx, l.Device)
	}
}

func (l *library) scrollUntilVisible(ctx context.Context, direction, selector string) error {
	sel := l.expand(selector)
	found, err := l.scroller.ScrollUntilVisible(ctx, sel, actions.Direction(direction), actions.DefaultMaxScrolls, actions.DefaultScrollPercent)
	if err != nil {
		return err
	}
	if !found {
		return core.ErrElementNotVisible.WithDetails(map[string]interface{}{"selector": sel})
	}
	return nil
}

func (l *library) openDeepLink(ctx context.Context, url string) error {
	return l.Device.OpenURL(ctx, l.expand(url))
}

func (l *library) allowNotifications(ctx context.Context) error {
	actions.AllowNotificationAccess(ctx, l.Device)
	return nil
}

func (l *library) restartApp(ctx context.Context) error {
	return actions.RestartApp(ctx, l.Device)
}

func (l *library) shouldSee(ctx context.Context, selector string) error {
	return actions.WaitForVisible(ctx, l.Device, l.expand(selector))
}

func (l *library) shouldNotSee(ctx context.Context, selector string) error {
	return actions.WaitForInvisible(ctx, l.Device, l.expand(selector))
}

func (l *library) shouldSeeAny(ctx context.Context, selector string) error {
	return actions.WaitUntilAtLeastOneDisplayed(ctx, l.Device, l.expand(selector))
}

func (l *library) shouldHaveText(ctx context.Context, selector, text string) error {
	return actions.WaitForTextToUpdate(ctx, l.Device, l.expand(selector), l.expand(text))
}

func (l *library) storedValueShouldBe(key, want string) error {
	v, ok := l.Store.Lookup(key)
	if !ok {
		return fmt.Errorf("no stored value %q", key)
	}
	got := fmt.Sprint(v)
	want = l.expand(want)
	if got != want {
		return core.ErrTextMismatch.WithDetails(map[string]interface{}{"key": key, "expected": want, "actual": got})
	}
	return nil
}

func (l *library) storeValue(value, key string) error {
	l.Store.Set(key, l.expand(value))
	return nil
}

func (l *library) storeText(ctx context.Context, selector, key string) error {
	text, err := actions.WaitAndGetText(ctx, l.Device, l.expand(selector))
	if err != nil {
		return err
	}
	l.Store.Set(key, strings.TrimSpace(text))
	return nil
}

func (l *library) storeRandomEmail(key string) error {
	l.Store.Set(key, l.Data.RandomEmail())
	return nil
}

func (l *library) storeRandomMobile(region, key string) error {
	n, err := l.Data.RandomMobileNumber(region)
	if err != nil {
		return err
	}
	l.Store.Set(key, n)
	return nil
}

func (l *library) storeDate(days, key string) error {
	n, err := strconv.Atoi(days)
	if err != nil {
		return err
	}
	date, err := l.Dates.DateAfterAddingDays(l.Timezone, n, datetime.LayoutDate)
	if err != nil {
		return err
	}
	l.Store.Set(key, date)
	return nil
}

func (l *library) storeQueryColumn(ctx context.Context, column, query, key string) error {
	if l.DB == nil {
		return core.ErrMissingRequired.WithMessage("no database configured")
	}
	rows, err := l.DB.Query(ctx, l.expand(query))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("query returned no rows: %s", query)
	}
	v, ok := rows[0][column]
	if !ok {
		return fmt.Errorf("query has no column %q", column)
	}
	l.Store.Set(key, v)
	return nil
}
