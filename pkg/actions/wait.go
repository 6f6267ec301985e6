// Package actions implements reusable device interactions over core.Device:
// bounded waits, permission dialogs, app resets, keyboard keys and scrolling.
package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/mobile-e2e/pkg/core"
)

// Default bounds for element waits.
var (
	DefaultTimeout = 10 * time.Second
	PollInterval   = 200 * time.Millisecond
)

// Condition is polled until it reports true. Errors count as "not yet" and
// the last one is kept for the timeout error.
type Condition func(ctx context.Context) (bool, error)

// Poll evaluates cond until it returns true or timeout elapses. A timeout or
// a cancelled parent context yields core.ErrWaitTimeout.
func Poll(ctx context.Context, timeout, interval time.Duration, cond Condition) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if interval <= 0 {
		interval = PollInterval
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for {
		ok, err := cond(ctx)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			werr := core.ErrWaitTimeout.WithDetails(map[string]interface{}{"timeout": timeout.String()})
			if lastErr != nil {
				return werr.WithCause(lastErr)
			}
			return werr.WithCause(ctx.Err())
		case <-time.After(interval):
		}
	}
}

func timeoutOr(timeout []time.Duration) time.Duration {
	if len(timeout) > 0 && timeout[0] > 0 {
		return timeout[0]
	}
	return DefaultTimeout
}

func describe(err error, what, selector string) error {
	return fmt.Errorf("%s %s: %w", what, selector, err)
}

// WaitForVisible waits until selector is displayed.
func WaitForVisible(ctx context.Context, dev core.Device, selector string, timeout ...time.Duration) error {
	err := Poll(ctx, timeoutOr(timeout), PollInterval, func(ctx context.Context) (bool, error) {
		return dev.IsDisplayed(ctx, selector)
	})
	if err != nil {
		return describe(err, "wait for visible", selector)
	}
	return nil
}

// WaitForInvisible waits until selector is no longer displayed.
func WaitForInvisible(ctx context.Context, dev core.Device, selector string, timeout ...time.Duration) error {
	err := Poll(ctx, timeoutOr(timeout), PollInterval, func(ctx context.Context) (bool, error) {
		shown, err := dev.IsDisplayed(ctx, selector)
		if err != nil {
			// A lookup failure means the element is gone.
			return true, nil
		}
		return !shown, nil
	})
	if err != nil {
		return describe(err, "wait for invisible", selector)
	}
	return nil
}

// WaitAndClick waits for selector and clicks it.
func WaitAndClick(ctx context.Context, dev core.Device, selector string, timeout ...time.Duration) error {
	if err := WaitForVisible(ctx, dev, selector, timeout...); err != nil {
		return err
	}
	return dev.Click(ctx, selector)
}

// WaitAndSetValue waits for selector and types value into it.
func WaitAndSetValue(ctx context.Context, dev core.Device, selector, value string, timeout ...time.Duration) error {
	if err := WaitForVisible(ctx, dev, selector, timeout...); err != nil {
		return err
	}
	return dev.SetValue(ctx, selector, value)
}

// WaitAndGetText returns the text of a static element: its text on Android
// and its label on iOS.
func WaitAndGetText(ctx context.Context, dev core.Device, selector string, timeout ...time.Duration) (string, error) {
	if err := WaitForVisible(ctx, dev, selector, timeout...); err != nil {
		return "", err
	}
	if dev.Platform() == core.PlatformIOS {
		return dev.Attribute(ctx, selector, "label")
	}
	return dev.Text(ctx, selector)
}

// WaitAndGetValue returns the value of an input field: its text on Android
// and its value on iOS.
func WaitAndGetValue(ctx context.Context, dev core.Device, selector string, timeout ...time.Duration) (string, error) {
	if err := WaitForVisible(ctx, dev, selector, timeout...); err != nil {
		return "", err
	}
	if dev.Platform() == core.PlatformIOS {
		return dev.Attribute(ctx, selector, "value")
	}
	return dev.Text(ctx, selector)
}

// WaitUntilEnabled waits until selector is enabled, or disabled when reverse.
func WaitUntilEnabled(ctx context.Context, dev core.Device, selector string, reverse bool, timeout ...time.Duration) error {
	err := Poll(ctx, timeoutOr(timeout), PollInterval, func(ctx context.Context) (bool, error) {
		enabled, err := dev.IsEnabled(ctx, selector)
		if err != nil {
			return false, err
		}
		return enabled != reverse, nil
	})
	if err != nil {
		return describe(err, "wait until enabled", selector)
	}
	return nil
}

// WaitForTextToUpdate waits until the text of selector equals want, ignoring case.
func WaitForTextToUpdate(ctx context.Context, dev core.Device, selector, want string, timeout ...time.Duration) error {
	err := Poll(ctx, timeoutOr(timeout), PollInterval, func(ctx context.Context) (bool, error) {
		text, err := dev.Text(ctx, selector)
		if err != nil {
			return false, err
		}
		return strings.EqualFold(text, want), nil
	})
	if err != nil {
		return describe(err, fmt.Sprintf("wait for text %q on", want), selector)
	}
	return nil
}

// WaitUntilAtLeastOneDisplayed waits until selector matches one or more elements.
func WaitUntilAtLeastOneDisplayed(ctx context.Context, dev core.Device, selector string, timeout ...time.Duration) error {
	err := Poll(ctx, timeoutOr(timeout), PollInterval, func(ctx context.Context) (bool, error) {
		n, err := dev.Count(ctx, selector)
		if err != nil {
			return false, err
		}
		return n >= 1, nil
	})
	if err != nil {
		return describe(err, "wait for any", selector)
	}
	return nil
}

// TapByCoordinate taps the screen at x, y.
func TapByCoordinate(ctx context.Context, dev core.Device, x, y int) error {
	return dev.Tap(ctx, x, y)
}

// ExecuteClick taps an element through the platform's mobile: tap command,
// for elements the regular click does not reach.
func ExecuteClick(ctx context.Context, dev core.Device, selector string) error {
	id, err := dev.ElementID(ctx, selector)
	if err != nil {
		return err
	}
	_, err = dev.ExecuteMobile(ctx, "tap", map[string]interface{}{
		"x":         0,
		"y":         0,
		"elementId": id,
	})
	return err
}
