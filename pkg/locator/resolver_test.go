package locator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/devicelab-dev/appium-harness/pkg/core"
	"github.com/devicelab-dev/appium-harness/pkg/driver/appium"
	"github.com/devicelab-dev/appium-harness/pkg/driver/appium/appiumtest"
	"github.com/devicelab-dev/appium-harness/pkg/wait"
)

var fastPoll = wait.Config{Interval: 5 * time.Millisecond}

var errNoMatch = errors.New("no such element")

func mockBackend(ctrl *gomock.Controller, kind Kind) *MockBackend {
	b := NewMockBackend(ctrl)
	b.EXPECT().Kind().Return(kind).AnyTimes()
	return b
}

func TestFind_FirstDescriptorWins(t *testing.T) {
	ctrl := gomock.NewController(t)
	instr := mockBackend(ctrl, Instrumented)
	native := mockBackend(ctrl, Native)

	el := Define("login_submit",
		"instrumented:key=login_submit",
		"native:xpath=//*[contains(@text,'Sign In')]",
	)
	instr.EXPECT().Lookup(gomock.Any(), el.Descriptors[0]).Return("flutter-1", nil).Times(1)
	native.EXPECT().Lookup(gomock.Any(), gomock.Any()).Times(0)

	r := NewResolver("android", nil, fastPoll, instr, native)
	h, err := r.Find(el, time.Second)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if h.ID != "flutter-1" || h.Descriptor != el.Descriptors[0] {
		t.Errorf("handle = %+v", h)
	}
	if len(h.Attempts) != 1 || h.Attempts[0].Outcome != Found || h.Attempts[0].Polls != 1 {
		t.Errorf("attempts = %v", h.Attempts)
	}
}

func TestFind_FallsBackInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	instr := mockBackend(ctrl, Instrumented)
	native := mockBackend(ctrl, Native)

	el := Define("login_submit",
		"instrumented:key=login_submit",
		"native:accessibility id=Sign In",
	)
	first := instr.EXPECT().Lookup(gomock.Any(), el.Descriptors[0]).Return("", errNoMatch).MinTimes(1)
	native.EXPECT().Lookup(gomock.Any(), el.Descriptors[1]).Return("native-7", nil).Times(1).After(first)

	r := NewResolver("android", nil, fastPoll, instr, native)
	h, err := r.Find(el, 40*time.Millisecond)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if h.ID != "native-7" {
		t.Errorf("ID = %q", h.ID)
	}
	if len(h.Attempts) != 2 {
		t.Fatalf("attempts = %v", h.Attempts)
	}
	if h.Attempts[0].Descriptor != el.Descriptors[0] || h.Attempts[0].Outcome != NotFound {
		t.Errorf("first attempt = %v", h.Attempts[0])
	}
	if !errors.Is(h.Attempts[0].Err, errNoMatch) {
		t.Errorf("first attempt error = %v", h.Attempts[0].Err)
	}
	if h.Attempts[1].Outcome != Found {
		t.Errorf("second attempt = %v", h.Attempts[1])
	}
}

func TestFind_ExhaustionIsBounded(t *testing.T) {
	ctrl := gomock.NewController(t)
	instr := mockBackend(ctrl, Instrumented)
	native := mockBackend(ctrl, Native)
	instr.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return("", errNoMatch).AnyTimes()
	native.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return("", errNoMatch).AnyTimes()

	el := Define("ghost", "instrumented:key=ghost", "native:id=ghost")
	el.Descriptors[1].Timeout = 30 * time.Millisecond

	r := NewResolver("android", nil, fastPoll, instr, native)
	start := time.Now()
	_, err := r.Find(el, 50*time.Millisecond)
	elapsed := time.Since(start)

	if elapsed > 80*time.Millisecond+150*time.Millisecond {
		t.Errorf("Find took %s, want about 80ms", elapsed)
	}
	if elapsed < 80*time.Millisecond {
		t.Errorf("Find returned after %s, before both timeouts elapsed", elapsed)
	}

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want *NotFoundError", err)
	}
	if !errors.Is(err, core.ErrElementNotFound) {
		t.Error("NotFoundError should match core.ErrElementNotFound")
	}
	if core.CategoryOf(err) != core.ErrCategoryAssertion {
		t.Errorf("category = %v", core.CategoryOf(err))
	}
	if got := nf.Descriptors(); len(got) != 2 || got[0] != el.Descriptors[0] || got[1] != el.Descriptors[1] {
		t.Errorf("Descriptors() = %v", got)
	}
	if !strings.Contains(err.Error(), "instrumented:key=ghost") || !strings.Contains(err.Error(), "native:id=ghost") {
		t.Errorf("error should list descriptors: %v", err)
	}
}

func TestFind_TimeoutShorterThanPollInterval(t *testing.T) {
	ctrl := gomock.NewController(t)
	native := mockBackend(ctrl, Native)
	ready := time.Now().Add(100 * time.Millisecond)
	native.EXPECT().Lookup(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, Descriptor) (string, error) {
		if time.Now().Before(ready) {
			return "", errNoMatch
		}
		return "late-1", nil
	}).MinTimes(2)

	// default 250ms interval, longer than the timeout
	r := NewResolver("android", nil, wait.Config{}, native)
	h, err := r.Find(Define("banner", "native:id=banner"), 200*time.Millisecond)
	if err != nil {
		t.Fatalf("Find() error = %v, want the element that appeared at 100ms", err)
	}
	if h.ID != "late-1" || h.Attempts[0].Polls != 2 {
		t.Errorf("handle = %+v", h)
	}
}

func TestFind_SlowLookupIsCutAtDeadline(t *testing.T) {
	ctrl := gomock.NewController(t)
	native := mockBackend(ctrl, Native)
	native.EXPECT().Lookup(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ Descriptor) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(400 * time.Millisecond):
			return "slow-1", nil
		}
	}).MinTimes(1)

	r := NewResolver("android", nil, fastPoll, native)
	r.LookupGrace = 20 * time.Millisecond
	start := time.Now()
	_, err := r.Find(Define("slow", "native:id=slow"), 50*time.Millisecond)
	elapsed := time.Since(start)

	if !errors.Is(err, core.ErrElementNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
	if elapsed > 300*time.Millisecond {
		t.Errorf("Find took %s, want about 70ms", elapsed)
	}
}

func TestFind_MissingBackendIsUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	native := mockBackend(ctrl, Native)
	native.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return("n-1", nil)

	el := Define("skip", "instrumented:key=onboarding_skip", "native:accessibility id=Skip")
	r := NewResolver("ios", nil, fastPoll, native)

	h, err := r.Find(el, time.Second)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	first := h.Attempts[0]
	if first.Outcome != Unavailable || first.Polls != 0 {
		t.Errorf("first attempt = %v", first)
	}
	if !errors.Is(first.Err, core.ErrBackendUnavailable) {
		t.Errorf("first attempt error = %v", first.Err)
	}
}

func TestFind_UnavailableStopsPolling(t *testing.T) {
	ctrl := gomock.NewController(t)
	instr := mockBackend(ctrl, Instrumented)
	native := mockBackend(ctrl, Native)
	instr.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return("", unavailable(Instrumented, errNoMatch)).Times(1)
	native.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return("n-1", nil).Times(1)

	el := Define("skip", "instrumented:key=onboarding_skip", "native:accessibility id=Skip")
	r := NewResolver("android", nil, fastPoll, instr, native)

	start := time.Now()
	h, err := r.Find(el, 5*time.Second)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("unavailable backend should not be polled until timeout")
	}
	if h.Attempts[0].Outcome != Unavailable {
		t.Errorf("first attempt = %v", h.Attempts[0])
	}
}

func TestFind_PlatformFilter(t *testing.T) {
	ctrl := gomock.NewController(t)
	native := mockBackend(ctrl, Native)

	el := Define("welcome",
		"native@ios:-ios predicate string=label == 'Welcome'",
		"native@android:-android uiautomator=new UiSelector().text(\"Welcome\")",
	)
	native.EXPECT().Lookup(gomock.Any(), el.Descriptors[1]).Return("a-1", nil)

	r := NewResolver("android", nil, fastPoll, native)
	h, err := r.Find(el, time.Second)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(h.Attempts) != 1 || h.Descriptor.Platform != "android" {
		t.Errorf("handle = %+v", h)
	}
}

func TestFind_NoApplicableDescriptors(t *testing.T) {
	r := NewResolver("android", nil, fastPoll)
	_, err := r.Find(Define("ios_only", "native@ios:id=x"), time.Second)
	var nf *NotFoundError
	if !errors.As(err, &nf) || len(nf.Attempts) != 0 {
		t.Fatalf("error = %v", err)
	}
}

func TestIsPresent(t *testing.T) {
	ctrl := gomock.NewController(t)
	native := mockBackend(ctrl, Native)
	native.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return("", errNoMatch).AnyTimes()

	r := NewResolver("android", nil, fastPoll, native)
	if r.IsPresent(Define("x", "native:id=x"), 20*time.Millisecond) {
		t.Error("IsPresent() = true for missing element")
	}
}

func TestTap_ClickFailureIsInteractionError(t *testing.T) {
	ctrl := gomock.NewController(t)
	native := mockBackend(ctrl, Native)
	elements := NewMockElementDriver(ctrl)

	native.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return("e-1", nil)
	elements.EXPECT().ElementInfo("e-1").Return(&core.ElementInfo{ID: "e-1", Visible: true, Enabled: true}, nil)
	elements.EXPECT().ClickElement("e-1").Return(errors.New("stale element reference")).Times(1)

	r := NewResolver("android", elements, fastPoll, native)
	err := r.Tap(Define("submit", "native:id=submit"), time.Second)
	if !errors.Is(err, core.ErrInteraction) {
		t.Fatalf("error = %v, want interaction error", err)
	}
	if core.CategoryOf(err) != core.ErrCategoryInteraction {
		t.Errorf("category = %v", core.CategoryOf(err))
	}
}

func TestTap_NeverInteractable(t *testing.T) {
	ctrl := gomock.NewController(t)
	native := mockBackend(ctrl, Native)
	elements := NewMockElementDriver(ctrl)

	native.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return("e-1", nil)
	elements.EXPECT().ElementInfo("e-1").Return(&core.ElementInfo{ID: "e-1", Visible: true}, nil).MinTimes(1)
	elements.EXPECT().ClickElement(gomock.Any()).Times(0)

	r := NewResolver("android", elements, fastPoll, native)
	err := r.Tap(Define("submit", "native:id=submit"), 40*time.Millisecond)
	if !errors.Is(err, core.ErrWaitTimeout) {
		t.Fatalf("error = %v, want wait timeout", err)
	}
}

func TestTap_StaleStateIsInteractionError(t *testing.T) {
	ctrl := gomock.NewController(t)
	native := mockBackend(ctrl, Native)
	elements := NewMockElementDriver(ctrl)

	stale := &appium.WebDriverError{Status: 404, Code: appium.ErrCodeStaleElement, Message: "element is not attached to the page"}
	native.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return("e-1", nil)
	elements.EXPECT().ElementInfo("e-1").Return(nil, stale).Times(1)
	elements.EXPECT().ClickElement(gomock.Any()).Times(0)

	r := NewResolver("android", elements, fastPoll, native)
	start := time.Now()
	err := r.Tap(Define("submit", "native:id=submit"), 2*time.Second)

	if !errors.Is(err, core.ErrInteraction) {
		t.Fatalf("error = %v, want interaction error", err)
	}
	if errors.Is(err, core.ErrWaitTimeout) {
		t.Error("stale element should not be reported as a timeout")
	}
	if core.CategoryOf(err) != core.ErrCategoryInteraction {
		t.Errorf("category = %v", core.CategoryOf(err))
	}
	if !errors.Is(err, stale) {
		t.Error("interaction error should wrap the driver error")
	}
	if time.Since(start) > time.Second {
		t.Error("Tap retried a stale element")
	}
}

func TestEnterText_ClearsThenTypes(t *testing.T) {
	ctrl := gomock.NewController(t)
	native := mockBackend(ctrl, Native)
	elements := NewMockElementDriver(ctrl)

	native.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return("e-1", nil)
	gomock.InOrder(
		elements.EXPECT().ClearElement("e-1").Return(nil),
		elements.EXPECT().SendKeysToElement("e-1", "secret").Return(nil),
	)

	r := NewResolver("android", elements, fastPoll, native)
	if err := r.EnterText(Define("password", "native:id=password"), "secret", time.Second); err != nil {
		t.Fatalf("EnterText() error = %v", err)
	}
}

func TestEnterText_ClearFailureStops(t *testing.T) {
	ctrl := gomock.NewController(t)
	native := mockBackend(ctrl, Native)
	elements := NewMockElementDriver(ctrl)

	native.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return("e-1", nil)
	elements.EXPECT().ClearElement("e-1").Return(errors.New("boom"))
	elements.EXPECT().SendKeysToElement(gomock.Any(), gomock.Any()).Times(0)

	r := NewResolver("android", elements, fastPoll, native)
	err := r.EnterText(Define("password", "native:id=password"), "secret", time.Second)
	if !errors.Is(err, core.ErrInteraction) {
		t.Errorf("error = %v", err)
	}
}

func TestReadText_FallsBackToAttribute(t *testing.T) {
	ctrl := gomock.NewController(t)
	native := mockBackend(ctrl, Native)
	elements := NewMockElementDriver(ctrl)

	native.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return("e-1", nil)
	elements.EXPECT().GetElementText("e-1").Return("", nil)
	elements.EXPECT().GetElementAttribute("e-1", "text").Return("Welcome back", nil)

	r := NewResolver("android", elements, fastPoll, native)
	text, err := r.ReadText(Define("welcome", "native:id=welcome"), time.Second)
	if err != nil || text != "Welcome back" {
		t.Errorf("ReadText() = %q, %v", text, err)
	}
}

// The scenarios below run against the fake Appium server.

func liveResolver(t *testing.T, srv *appiumtest.Server) *Resolver {
	t.Helper()
	client := appium.NewClient(srv.URL)
	if err := client.Connect(map[string]interface{}{"platformName": "Android"}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return ForDriver(client, "android", fastPoll)
}

func TestFind_SignInFallbackScenario(t *testing.T) {
	srv := appiumtest.New()
	defer srv.Close()
	nativeID := srv.AddElement("xpath", "//*[contains(@text,'Sign In')]", appiumtest.Element{Text: "Sign In", Displayed: true, Enabled: true})

	r := liveResolver(t, srv)
	el := Define("login_submit",
		"instrumented:key=login_submit",
		"native:xpath=//*[contains(@text,'Sign In')]",
	)
	el.Descriptors[0].Timeout = 30 * time.Millisecond

	h, err := r.Find(el, time.Second)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if h.ID != nativeID || h.Descriptor.Backend != Native {
		t.Errorf("handle = %+v, want native element %s", h, nativeID)
	}
	failed := 0
	for _, a := range h.Attempts {
		if a.Descriptor.Backend == Instrumented && a.Outcome == NotFound {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("failed instrumented attempts = %d, want 1", failed)
	}
	if srv.Finds(FlutterStrategy) < 1 {
		t.Error("instrumented backend was never queried")
	}
}

func TestFind_FlutterDriverNotAttached(t *testing.T) {
	srv := appiumtest.New()
	defer srv.Close()
	srv.RejectStrategy(FlutterStrategy)
	srv.AddElement("accessibility id", "Skip", appiumtest.Element{Displayed: true, Enabled: true})

	r := liveResolver(t, srv)
	h, err := r.Find(Define("skip", "instrumented:key=onboarding_skip", "native:accessibility id=Skip"), 5*time.Second)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if h.Attempts[0].Outcome != Unavailable {
		t.Errorf("first attempt = %v", h.Attempts[0])
	}
	if srv.Finds(FlutterStrategy) != 1 {
		t.Errorf("flutter lookups = %d, want 1", srv.Finds(FlutterStrategy))
	}
}

func TestTap_WaitsUntilEnabled(t *testing.T) {
	srv := appiumtest.New()
	defer srv.Close()
	id := srv.AddElement("id", "submit", appiumtest.Element{Displayed: true, Enabled: false})

	r := liveResolver(t, srv)
	go func() {
		time.Sleep(40 * time.Millisecond)
		srv.Update(id, func(e *appiumtest.Element) { e.Enabled = true })
	}()

	if err := r.Tap(Define("submit", "native:id=submit"), 2*time.Second); err != nil {
		t.Fatalf("Tap() error = %v", err)
	}
	if srv.Clicks(id) != 1 {
		t.Errorf("clicks = %d, want 1", srv.Clicks(id))
	}
}

func TestEnterText_Live(t *testing.T) {
	srv := appiumtest.New()
	defer srv.Close()
	id := srv.AddElement("id", "email", appiumtest.Element{Text: "stale", Displayed: true, Enabled: true})

	r := liveResolver(t, srv)
	el := Define("email", "native:id=email")
	if err := r.EnterText(el, "user@example.com", time.Second); err != nil {
		t.Fatalf("EnterText() error = %v", err)
	}
	typed := srv.Typed(id)
	if len(typed) != 2 || typed[0] != "" || typed[1] != "user@example.com" {
		t.Errorf("typed = %q, want clear then text", typed)
	}
	text, err := r.ReadText(el, time.Second)
	if err != nil || text != "user@example.com" {
		t.Errorf("ReadText() = %q, %v", text, err)
	}
}

func TestWaitGone(t *testing.T) {
	srv := appiumtest.New()
	defer srv.Close()
	srv.AddElement("id", "spinner", appiumtest.Element{Displayed: true})

	r := liveResolver(t, srv)
	el := Define("spinner", "native:id=spinner")

	if err := r.WaitGone(el, 30*time.Millisecond); !errors.Is(err, core.ErrWaitTimeout) {
		t.Fatalf("WaitGone() = %v, want timeout while present", err)
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		srv.RemoveElement("id", "spinner")
	}()
	if err := r.WaitGone(el, 2*time.Second); err != nil {
		t.Errorf("WaitGone() = %v", err)
	}
}

func TestAttribute_Live(t *testing.T) {
	srv := appiumtest.New()
	defer srv.Close()
	srv.AddElement("id", "terms", appiumtest.Element{Attributes: map[string]string{"checked": "true"}})

	r := liveResolver(t, srv)
	v, err := r.Attribute(Define("terms", "native:id=terms"), "checked", time.Second)
	if err != nil || v != "true" {
		t.Errorf("Attribute() = %q, %v", v, err)
	}
}
