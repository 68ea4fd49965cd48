// Package browser drives a scripted Chrome session that logs into Facebook
// with raw credentials and captures a cropped screenshot of the profile
// page, standing in for a picture the Graph API will not hand out.
//
// Login and CapturePicture deliberately swallow errors and report failure
// through their return values: callers treat false/nil as a definitive
// failure and must always Close the session.
package browser

import (
	"context"
	"strings"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/picvault/picvault/internal/config"
	"github.com/picvault/picvault/internal/logger"
	"go.uber.org/zap"
)

const (
	loginPageURL   = "https://www.facebook.com/login.php"
	profilePageURL = "https://www.facebook.com/me"

	emailSelector    = "#email"
	passwordSelector = "#pass"

	// challengeMarker is the keyword scanned for in the page source to
	// detect a CAPTCHA interstitial.
	challengeMarker = "captcha"

	zoomScript = `document.body.style.zoom='2'`
)

// Screenshot crop rectangle, in CSS pixels, of the zoomed profile page.
var pictureClip = page.Viewport{
	X:      30,
	Y:      500,
	Width:  770,
	Height: 750,
	Scale:  1,
}

// Session is a single browser session. One session serves one request;
// sessions are never pooled or reused.
type Session struct {
	cfg    *config.BrowserConfig
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSession launches a Chrome process and waits for it to come up.
func NewSession(cfg *config.BrowserConfig) (*Session, error) {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	cancel := func() {
		browserCancel()
		allocCancel()
	}

	// Running an empty task forces the browser process to start now, so a
	// broken Chrome install fails the request up front instead of inside
	// the login script.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		return nil, err
	}

	return &Session{
		cfg:    cfg,
		ctx:    browserCtx,
		cancel: cancel,
	}, nil
}

// Login navigates to the login page and submits the credentials. It
// returns true when the session reached a logged-in state, false on any
// failure; errors are logged, never propagated. The credentials are never
// logged.
func (s *Session) Login(email, password string) bool {
	err := chromedp.Run(s.ctx,
		chromedp.Navigate(loginPageURL),
		chromedp.Sleep(s.cfg.PageWait),
		chromedp.WaitVisible(emailSelector, chromedp.ByID),
		chromedp.SendKeys(emailSelector, email, chromedp.ByID),
		chromedp.SendKeys(passwordSelector, password+kb.Enter, chromedp.ByID),
	)
	if err != nil {
		logger.Error("browser login failed", zap.Error(err))
		return false
	}

	challenged, err := s.challengePresent()
	if err != nil {
		logger.Error("could not inspect page for challenge", zap.Error(err))
		return false
	}
	if challenged {
		logger.Warn("challenge detected, waiting for manual resolution",
			zap.Duration("wait", s.cfg.ChallengeWait))
		if err := chromedp.Run(s.ctx, chromedp.Sleep(s.cfg.ChallengeWait)); err != nil {
			logger.Error("challenge wait interrupted", zap.Error(err))
			return false
		}

		// Re-verify instead of assuming the wait was enough.
		challenged, err = s.challengePresent()
		if err != nil {
			logger.Error("could not re-inspect page for challenge", zap.Error(err))
			return false
		}
		if challenged {
			logger.Error("challenge still present after wait window")
			return false
		}
	}

	logger.Info("browser login completed")
	return true
}

// CapturePicture navigates to the profile page, zooms the layout, and
// returns a clipped screenshot of the picture region. nil means failure;
// errors are logged, never propagated.
func (s *Session) CapturePicture() []byte {
	var buf []byte
	err := chromedp.Run(s.ctx,
		chromedp.Navigate(profilePageURL),
		chromedp.Sleep(s.cfg.RenderWait),
		chromedp.Evaluate(zoomScript, nil),
		chromedp.Sleep(s.cfg.PageWait),
		chromedp.ActionFunc(func(ctx context.Context) error {
			clip := pictureClip
			shot, err := page.CaptureScreenshot().
				WithClip(&clip).
				WithCaptureBeyondViewport(true).
				Do(ctx)
			if err != nil {
				return err
			}
			buf = shot
			return nil
		}),
	)
	if err != nil {
		logger.Error("profile picture capture failed", zap.Error(err))
		return nil
	}

	logger.Info("captured profile picture", zap.Int("bytes", len(buf)))
	return buf
}

// Close releases the browser process. Safe to call from any state and more
// than once.
func (s *Session) Close() {
	s.cancel()
}

func (s *Session) challengePresent() (bool, error) {
	var html string
	if err := chromedp.Run(s.ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(html), challengeMarker), nil
}
