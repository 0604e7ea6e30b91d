package session

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/rs/zerolog/log"
)

// Selectors on the authorize page. They follow the platform's markup and
// break whenever it changes.
const (
	selSignIn       = `input[value='Sign In']`
	selUsername     = `input[name='text']`
	selNext         = `//span[text()='Next']/ancestor::button`
	selPassword     = `input[name='password']`
	selLogin        = `button[data-testid='LoginForm_Login_Button']`
	selAllow        = `input#allow`
	unusualActivity = "unusual login activity"
)

// BrowserVerifier signs in through a headless Chrome and reads the PIN off
// the authorize page.
type BrowserVerifier struct {
	Username string
	Password string
	Email    string // answers the unusual-activity challenge
	Headless bool
	Timeout  time.Duration

	// Pause returns the wait between steps. Defaults to 1-5s of jitter.
	Pause func() time.Duration
}

func (b *BrowserVerifier) pause() chromedp.Action {
	if b.Pause != nil {
		return chromedp.Sleep(b.Pause())
	}
	return chromedp.Sleep(time.Duration(1000+rand.Intn(4000)) * time.Millisecond)
}

func (b *BrowserVerifier) Verifier(ctx context.Context, authURL string) (string, error) {
	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.Headless),
		chromedp.WindowSize(1280, 900),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	log.Info().Bool("headless", b.Headless).Msg("Starting browser login")

	err := chromedp.Run(browserCtx,
		chromedp.Navigate(authURL),
		b.pause(),
		chromedp.Click(selSignIn, chromedp.ByQuery),
		b.pause(),
		chromedp.SendKeys(selUsername, b.Username, chromedp.ByQuery),
		b.pause(),
		chromedp.Click(selNext, chromedp.BySearch),
		b.pause(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to submit username: %w", err)
	}

	var page string
	if err := chromedp.Run(browserCtx, chromedp.OuterHTML("html", &page, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read login page: %w", err)
	}
	if hasUnusualActivity(page) {
		log.Warn().Msg("Unusual login activity challenge, answering with email")
		if b.Email == "" {
			return "", fmt.Errorf("login challenge requires TWITTER_EMAIL")
		}
		err := chromedp.Run(browserCtx,
			chromedp.SendKeys(selUsername, b.Email+kb.Enter, chromedp.ByQuery),
			b.pause(),
		)
		if err != nil {
			return "", fmt.Errorf("failed to answer login challenge: %w", err)
		}
	}

	err = chromedp.Run(browserCtx,
		chromedp.SendKeys(selPassword, b.Password, chromedp.ByQuery),
		b.pause(),
		chromedp.Click(selLogin, chromedp.ByQuery),
		b.pause(),
		chromedp.Click(selAllow, chromedp.ByQuery),
		b.pause(),
		chromedp.WaitVisible("code", chromedp.ByQuery),
		chromedp.OuterHTML("html", &page, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("failed to authorize app: %w", err)
	}

	pin, err := extractVerifier(page)
	if err != nil {
		return "", err
	}
	log.Info().Msg("Read verifier from authorize page")
	return pin, nil
}

func hasUnusualActivity(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(doc.Text()), unusualActivity)
}

// extractVerifier reads the PIN the authorize page shows in a <code> element.
func extractVerifier(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse authorize page: %w", err)
	}
	pin := strings.TrimSpace(doc.Find("code").First().Text())
	if pin == "" {
		return "", fmt.Errorf("no verifier on authorize page")
	}
	return pin, nil
}
