package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/mobile-e2e/pkg/core"
	"github.com/devicelab-dev/mobile-e2e/pkg/logger"
)

// Direction is a swipe direction.
type Direction string

// Swipe directions. Up moves the content up, revealing what is below.
const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// ErrInvalidDirection is returned for an unknown Direction.
var ErrInvalidDirection = errors.New("invalid direction")

// Scroll defaults
const (
	DefaultMaxScrolls     = 4
	DefaultScrollPercent  = 0.6
	DefaultGesturePercent = 0.4
	swipeDuration         = 600 * time.Millisecond
	touchSwipeDuration    = time.Second
)

// Scroller performs swipe-based scrolling on a device.
type Scroller struct {
	Device core.Device
	Settle time.Duration // Pause after each screen scroll
}

// NewScroller creates a Scroller with a one second settle time.
func NewScroller(dev core.Device) *Scroller {
	return &Scroller{Device: dev, Settle: time.Second}
}

// ScrollToDestination swipes from one point to another.
func (s *Scroller) ScrollToDestination(ctx context.Context, startX, startY, endX, endY int) error {
	return s.Device.Swipe(ctx, startX, startY, endX, endY, swipeDuration)
}

// ScrollScreen swipes across percentage of the screen in direction.
func (s *Scroller) ScrollScreen(ctx context.Context, direction Direction, percentage float64) error {
	if percentage <= 0 {
		percentage = 0.8
	}
	w, h, err := s.Device.WindowSize(ctx)
	if err != nil {
		return err
	}
	width := float64(w) * percentage
	height := float64(h) * percentage
	startX, startY := width/2, height/2
	endX, endY := width/2, height/2

	switch direction {
	case Up:
		startY, endY = height, height*0.2
	case Down:
		startY, endY = height*0.2, height
	case Right:
		startX, endX = width*0.2, width
	case Left:
		startX, endX = width, width*0.2
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}

	logger.Debug("scrolling from (%.0f, %.0f) to (%.0f, %.0f)", startX, startY, endX, endY)
	if err := s.ScrollToDestination(ctx, int(startX), int(startY), int(endX), int(endY)); err != nil {
		return err
	}
	return sleep(ctx, s.Settle)
}

// ScrollUntilVisible scrolls in direction until selector is displayed or
// maxScrolls swipes were made. It reports whether the element is displayed.
func (s *Scroller) ScrollUntilVisible(ctx context.Context, selector string, direction Direction, maxScrolls int, percentage float64) (bool, error) {
	if percentage <= 0 {
		percentage = DefaultScrollPercent
	}
	for scrolls := 0; ; scrolls++ {
		shown, err := s.Device.IsDisplayed(ctx, selector)
		if err != nil {
			return false, err
		}
		if shown {
			return true, nil
		}
		if scrolls >= maxScrolls {
			return false, nil
		}
		if err := s.ScrollScreen(ctx, direction, percentage); err != nil {
			return false, err
		}
	}
}

// ScrollUpAndClick scrolls up until selector is displayed and clicks it.
func (s *Scroller) ScrollUpAndClick(ctx context.Context, selector string, maxScrolls int, percentage float64) error {
	if _, err := s.ScrollUntilVisible(ctx, selector, Up, maxScrolls, percentage); err != nil {
		return err
	}
	return s.Device.Click(ctx, selector)
}

// ScrollElementIntoView scrolls the platform scroll view with the Appium
// gestures plugin until the element located by strategy and selector shows.
func (s *Scroller) ScrollElementIntoView(ctx context.Context, strategy, selector string, percentage float64, maxScrolls int) error {
	if percentage <= 0 {
		percentage = DefaultGesturePercent
	}
	if maxScrolls <= 0 {
		maxScrolls = DefaultMaxScrolls
	}
	viewID, err := s.Device.ElementID(ctx, verticalScrollableView(s.Device.Platform()))
	if err != nil {
		return fmt.Errorf("scroll view: %w", err)
	}
	if strategy == "accessibility id" {
		selector = strings.TrimPrefix(selector, "~")
	}
	_, err = s.Device.ExecuteMobile(ctx, "gesture: scrollElementIntoView", map[string]interface{}{
		"scrollableView": viewID,
		"strategy":       strategy,
		"selector":       selector,
		"percentage":     percentage,
		"direction":      string(Up),
		"maxCount":       maxScrolls,
	})
	return err
}

// ScrollViaAccessibilityIDAndClick scrolls an accessibility id into view and clicks it.
func (s *Scroller) ScrollViaAccessibilityIDAndClick(ctx context.Context, selector string, percentage float64, maxScrolls int) error {
	if err := s.ScrollElementIntoView(ctx, "accessibility id", selector, percentage, maxScrolls); err != nil {
		return err
	}
	return s.Device.Click(ctx, selector)
}

// ScrollViaXPathAndClick scrolls an XPath into view and clicks it.
func (s *Scroller) ScrollViaXPathAndClick(ctx context.Context, xpath string, percentage float64, maxScrolls int) error {
	if err := s.ScrollElementIntoView(ctx, "xpath", xpath, percentage, maxScrolls); err != nil {
		return err
	}
	return s.Device.Click(ctx, xpath)
}

// ScrollUntilVisibleByTouch swipes at x=100 from startY to endY until selector
// is displayed, at most maxScrolls times.
func (s *Scroller) ScrollUntilVisibleByTouch(ctx context.Context, selector string, maxScrolls, startY, endY int) (bool, error) {
	for i := 0; i < maxScrolls; i++ {
		shown, err := s.Device.IsDisplayed(ctx, selector)
		if err != nil {
			return false, err
		}
		if shown {
			return true, nil
		}
		if err := s.Device.Swipe(ctx, 100, startY, 100, endY, touchSwipeDuration); err != nil {
			return false, err
		}
	}
	return s.Device.IsDisplayed(ctx, selector)
}

// HorizontalScrollUntilVisible swipes inside the scrollable element until
// target is displayed. Only Left and Right are accepted.
func (s *Scroller) HorizontalScrollUntilVisible(ctx context.Context, scrollable, target string, direction Direction, maxScrolls int, widthPercentage float64) (bool, error) {
	if widthPercentage <= 0 {
		widthPercentage = 0.8
	}
	rect, err := s.Device.Rect(ctx, scrollable)
	if err != nil {
		return false, err
	}
	startX := rect.X
	y := rect.Y + rect.Height/2

	var destX int
	switch direction {
	case Left:
		destX = startX
	case Right:
		destX = int(float64(rect.Width) * widthPercentage)
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}

	for scrolls := 0; ; scrolls++ {
		shown, err := s.Device.IsDisplayed(ctx, target)
		if err != nil {
			return false, err
		}
		if shown || scrolls >= maxScrolls {
			return shown, nil
		}
		if err := s.ScrollToDestination(ctx, startX+rect.Width/2, y, destX, y); err != nil {
			return false, err
		}
	}
}

// ElementCenter returns the center point of selector.
func (s *Scroller) ElementCenter(ctx context.Context, selector string) (int, int, error) {
	rect, err := s.Device.Rect(ctx, selector)
	if err != nil {
		return 0, 0, err
	}
	x, y := rect.Center()
	return x, y, nil
}

// DragElementTo drags the element at from onto the position of to.
func (s *Scroller) DragElementTo(ctx context.Context, from, to string) error {
	startX, startY, err := s.ElementCenter(ctx, from)
	if err != nil {
		return err
	}
	endX, endY, err := s.ElementCenter(ctx, to)
	if err != nil {
		return err
	}
	if err := s.ScrollToDestination(ctx, startX, startY, endX, endY); err != nil {
		return err
	}
	return sleep(ctx, s.Settle)
}

// HorizontalScrollableView returns the selector of the platform's horizontal scroll view.
func HorizontalScrollableView(platform string) string {
	if platform == core.PlatformIOS {
		return "//XCUIElementTypeScrollView"
	}
	return "//android.widget.HorizontalScrollView"
}

func verticalScrollableView(platform string) string {
	if platform == core.PlatformIOS {
		return "XCUIElementTypeScrollView"
	}
	return "android.widget.ScrollView"
}
