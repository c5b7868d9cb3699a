package scraper

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
)

// Portal is the judicial search site as seen by the harvester. Every step
// reports an Outcome instead of failing.
type Portal interface {
	ShowResults() Outcome
	Search(topic string) Outcome
	PageText() (string, Outcome)
	DocumentID() (string, Outcome)
	OpenDownloadMenu() Outcome
	ChoosePDF() Outcome
	NextPage() Outcome
	Close() error
}

// PortalFactory opens a portal whose downloads land in downloadDir.
type PortalFactory func(ctx context.Context, downloadDir string) (Portal, error)

// Selectors are XPath expressions for the portal's JSF widgets. The generated
// j_idt ids move between portal releases.
type Selectors struct {
	SidebarButton string
	SearchInput   string
	SearchButton  string
	PageIndicator string
	ResultPanel   string
	DownloadMenu  string
	PDFOption     string
	NextButton    string
}

// DefaultSelectors are the element ids of the judicial search portal.
func DefaultSelectors() Selectors {
	return Selectors{
		SidebarButton: `//*[@id="resultForm:hidebutton"]/span[1]`,
		SearchInput:   `//*[@id="searchForm:temaInput"]`,
		SearchButton:  `//span[text()='Buscar']/parent::button`,
		PageIndicator: `//*[@id="resultForm:pagText2"]`,
		ResultPanel:   `//*[@id="resultForm"]`,
		DownloadMenu:  `//*[@id="resultForm:j_idt265_menuButton"]`,
		PDFOption:     `//*[@id="resultForm:j_idt268"]`,
		NextButton:    `//button[@id='resultForm:j_idt248']`,
	}
}

// PortalOptions configure the Chrome session.
type PortalOptions struct {
	URL         string
	Headless    bool
	StepTimeout time.Duration
	Selectors   Selectors
}

// ChromePortal drives the portal through a single Chrome session.
type ChromePortal struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	stepTimeout time.Duration
	sel         Selectors
}

// ChromePortalFactory returns a PortalFactory bound to opts.
func ChromePortalFactory(opts PortalOptions) PortalFactory {
	return func(ctx context.Context, downloadDir string) (Portal, error) {
		return NewChromePortal(ctx, downloadDir, opts)
	}
}

// NewChromePortal starts Chrome with downloads going to downloadDir and opens
// the portal.
func NewChromePortal(ctx context.Context, downloadDir string, opts PortalOptions) (*ChromePortal, error) {
	absDir, err := filepath.Abs(downloadDir)
	if err != nil {
		return nil, err
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 10 * time.Second
	}
	if opts.Selectors == (Selectors{}) {
		opts.Selectors = DefaultSelectors()
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"),
	)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	err = chromedp.Run(browserCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(absDir).
			WithEventsEnabled(true),
		chromedp.Navigate(opts.URL),
	)
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to open portal %s: %w", opts.URL, err)
	}

	return &ChromePortal{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		stepTimeout: opts.StepTimeout,
		sel:         opts.Selectors,
	}, nil
}

// step runs actions under the step timeout and classifies the result.
func (p *ChromePortal) step(actions ...chromedp.Action) Outcome {
	ctx, cancel := context.WithTimeout(p.ctx, p.stepTimeout)
	defer cancel()
	return classify(ctx, chromedp.Run(ctx, actions...))
}

// jsClick clicks through the DOM so overlays cannot intercept the event.
func jsClick(xpath string) chromedp.Action {
	js := fmt.Sprintf(`(function(){
		const el = document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		if (!el) { return false; }
		el.click();
		return true;
	})()`, strconv.Quote(xpath))
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var clicked bool
		if err := chromedp.Evaluate(js, &clicked).Do(ctx); err != nil {
			return err
		}
		if !clicked {
			return fmt.Errorf("element %s disappeared before click", xpath)
		}
		return nil
	})
}

func (p *ChromePortal) clickWhenVisible(xpath string) Outcome {
	return p.step(
		chromedp.WaitVisible(xpath, chromedp.BySearch),
		jsClick(xpath),
	)
}

func (p *ChromePortal) ShowResults() Outcome {
	return p.clickWhenVisible(p.sel.SidebarButton)
}

// Search types topic into the search box and submits it.
func (p *ChromePortal) Search(topic string) Outcome {
	return p.step(
		chromedp.WaitReady(p.sel.SearchInput, chromedp.BySearch),
		chromedp.ScrollIntoView(p.sel.SearchInput, chromedp.BySearch),
		jsClick(p.sel.SearchInput),
		chromedp.Clear(p.sel.SearchInput, chromedp.BySearch),
		chromedp.SendKeys(p.sel.SearchInput, topic, chromedp.BySearch),
		jsClick(p.sel.SearchButton),
	)
}

// PageText reads the result page indicator, e.g. "Resultado: 3 de 120".
func (p *ChromePortal) PageText() (string, Outcome) {
	var text string
	o := p.step(chromedp.Text(p.sel.PageIndicator, &text, chromedp.BySearch))
	return strings.TrimSpace(text), o
}

// DocumentID reads the ID label of the result currently shown.
func (p *ChromePortal) DocumentID() (string, Outcome) {
	var html string
	o := p.step(chromedp.OuterHTML(p.sel.ResultPanel, &html, chromedp.BySearch))
	if o != OK {
		return "", o
	}
	id := ExtractDocumentID(html)
	if id == "" {
		return "", NotFound
	}
	return id, OK
}

func (p *ChromePortal) OpenDownloadMenu() Outcome {
	return p.clickWhenVisible(p.sel.DownloadMenu)
}

func (p *ChromePortal) ChoosePDF() Outcome {
	return p.clickWhenVisible(p.sel.PDFOption)
}

// NextPage moves to the next result.
func (p *ChromePortal) NextPage() Outcome {
	return p.clickWhenVisible(p.sel.NextButton)
}

// Close shuts the browser down.
func (p *ChromePortal) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	p.allocCancel()
	return err
}

var idPattern = regexp.MustCompile(`\bID:\s*([A-Za-z0-9][A-Za-z0-9._\-]*)`)

// ExtractDocumentID finds the value printed next to the "ID:" label of the
// current result.
func ExtractDocumentID(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	var id string
	doc.Find("label, span, td, th, b, strong, div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) != "ID:" {
			return true
		}
		if fields := strings.Fields(s.Next().Text()); len(fields) > 0 {
			id = fields[0]
			return false
		}
		return true
	})
	if id != "" {
		return id
	}

	if m := idPattern.FindStringSubmatch(doc.Text()); m != nil {
		return m[1]
	}
	return ""
}
