package scraper

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"abogacia-chatbot/internal/logger"
	"abogacia-chatbot/internal/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	stuckLimit = 3
	// consecutive unreadable page indicators before a topic is abandoned
	unknownPageLimit = 10
)

// Ingester indexes a filed document.
type Ingester interface {
	Ingest(ctx context.Context, path string) (string, error)
}

// HarvesterOptions tune waits and the staging directory of an acquisition run.
type HarvesterOptions struct {
	DownloadDir  string
	DownloadWait time.Duration
	PageWait     time.Duration
	PollInterval time.Duration
}

// TopicReport summarises one topic of a run.
type TopicReport struct {
	Topic    string   `json:"topic"`
	Quota    int      `json:"quota"`
	Known    int      `json:"known"`
	Accepted int      `json:"accepted"`
	Stopped  string   `json:"stopped"`
	Errors   []string `json:"errors,omitempty"`
}

// Harvester runs acquisition: search, paginate, download, file, ingest.
// Runs are serialized; one browser is open at a time.
type Harvester struct {
	mu        sync.Mutex
	opts      HarvesterOptions
	newPortal PortalFactory
	tracker   Tracker
	filer     *Filer
	ingester  Ingester
	metrics   *telemetry.Metrics
}

// NewHarvester wires a harvester. ingester and metrics may be nil; without an
// ingester documents are filed but not indexed.
func NewHarvester(opts HarvesterOptions, newPortal PortalFactory, tracker Tracker, ingester Ingester, metrics *telemetry.Metrics) *Harvester {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	return &Harvester{
		opts:      opts,
		newPortal: newPortal,
		tracker:   tracker,
		filer:     NewFiler(opts.DownloadDir, tracker),
		ingester:  ingester,
		metrics:   metrics,
	}
}

// Run harvests every topic, in name order, through one portal session.
func (h *Harvester) Run(ctx context.Context, topics map[string]int) ([]TopicReport, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]string, 0, len(topics))
	for t := range topics {
		names = append(names, t)
	}
	sort.Strings(names)

	var portal Portal
	defer func() {
		if portal != nil {
			if err := portal.Close(); err != nil {
				logger.Debug("Portal close", "error", err)
			}
		}
	}()

	reports := make([]TopicReport, 0, len(names))
	for _, topic := range names {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		known, err := h.tracker.Load(topic)
		if err != nil {
			return reports, fmt.Errorf("loading known documents for %q: %w", topic, err)
		}
		logger.Info("Existing documents for topic", "topic", topic, "count", len(known), "quota", topics[topic])

		report := TopicReport{Topic: topic, Quota: topics[topic], Known: len(known)}
		if len(known) >= topics[topic] {
			report.Stopped = "quota already met"
			reports = append(reports, report)
			continue
		}

		if portal == nil {
			portal, err = h.newPortal(ctx, h.opts.DownloadDir)
			if err != nil {
				return reports, err
			}
		}

		h.harvestTopic(ctx, portal, topic, topics[topic], known, &report)
		report.Known = len(known)
		reports = append(reports, report)
		logger.Info("Topic finished", "topic", topic, "known", report.Known, "accepted", report.Accepted, "stopped", report.Stopped)
	}
	return reports, nil
}

func (h *Harvester) harvestTopic(ctx context.Context, portal Portal, topic string, quota int, known map[string]struct{}, report *TopicReport) {
	ctx, span := otel.Tracer("scraper").Start(ctx, "harvest.topic")
	defer span.End()
	span.SetAttributes(attribute.String("topic", topic), attribute.Int("quota", quota))

	if o := portal.ShowResults(); o != OK {
		logger.Debug("Sidebar toggle not available", "topic", topic, "outcome", o.String())
	}
	if o := portal.Search(topic); o != OK {
		report.Stopped = "search " + o.String()
		logger.Warn("Search failed", "topic", topic, "outcome", o.String())
		return
	}
	h.waitForPage(ctx, portal, 0, false)

	guard := newStuckGuard(stuckLimit)
	unknown := 0

	for len(known) < quota {
		if ctx.Err() != nil {
			report.Stopped = "canceled"
			return
		}

		text, o := portal.PageText()
		page, ok := 0, false
		if o == OK {
			page, ok = ParsePageNumber(text)
		}

		if ok {
			unknown = 0
			if guard.Observe(page) {
				report.Stopped = ErrPaginationStuck.Error()
				logger.Warn("Stopped searching topic, page did not change", "topic", topic, "page", page, "reads", stuckLimit)
				break
			}
			h.downloadCurrent(ctx, portal, topic, known, quota, report)
			if len(known) >= quota {
				break
			}
		} else {
			unknown++
			if unknown >= unknownPageLimit {
				report.Stopped = "page indicator unreadable"
				logger.Warn("Stopped searching topic, page indicator unreadable", "topic", topic, "outcome", o.String())
				break
			}
		}

		if o := portal.NextPage(); o != OK {
			logger.Debug("Next page not clickable", "topic", topic, "outcome", o.String())
		}
		h.waitForPage(ctx, portal, page, ok)
	}

	if report.Stopped == "" {
		report.Stopped = "quota reached"
	}
	span.SetAttributes(attribute.Int("accepted", report.Accepted), attribute.String("stopped", report.Stopped))
}

// waitForPage polls the indicator until it shows a page other than prev.
func (h *Harvester) waitForPage(ctx context.Context, portal Portal, prev int, prevKnown bool) {
	_ = WaitFor(ctx, h.opts.PollInterval, h.opts.PageWait, func() bool {
		text, o := portal.PageText()
		if o != OK {
			return false
		}
		page, ok := ParsePageNumber(text)
		return ok && (!prevKnown || page != prev)
	})
}

// downloadCurrent triggers the PDF download of the current result and files
// whatever the staging directory holds afterwards.
func (h *Harvester) downloadCurrent(ctx context.Context, portal Portal, topic string, known map[string]struct{}, quota int, report *TopicReport) {
	var docID string
	if h.tracker.UsesDocumentIDs() {
		if id, o := portal.DocumentID(); o == OK {
			docID = id
			if _, dup := known[id]; dup {
				logger.Info("Document already downloaded, skipping", "topic", topic, "id", id)
				h.metrics.RecordDuplicate(topic)
				return
			}
		}
	}

	staged, err := listFiles(h.opts.DownloadDir, ".pdf")
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return
	}
	before := fileSet(staged)

	if o := portal.OpenDownloadMenu(); o != OK {
		logger.Info("Download menu not available", "topic", topic, "outcome", o.String())
		return
	}
	if o := portal.ChoosePDF(); o != OK {
		logger.Info("PDF option not available", "topic", topic, "outcome", o.String())
		return
	}

	fresh, err := WaitForNewFiles(ctx, h.opts.DownloadDir, ".pdf", before, h.opts.PollInterval, h.opts.DownloadWait)
	if errors.Is(err, ErrWaitTimeout) {
		logger.Info("No PDF materialized after download", "topic", topic, "wait", h.opts.DownloadWait.String())
		return
	}
	if err != nil {
		return
	}

	freshSet := fileSet(fresh)
	all, err := listFiles(h.opts.DownloadDir, ".pdf")
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return
	}

	for _, name := range all {
		if len(known) >= quota {
			return
		}
		key := name
		if _, isFresh := freshSet[name]; isFresh && docID != "" && len(fresh) == 1 {
			key = docID
		}

		dest, accepted, err := h.filer.File(topic, filepath.Join(h.opts.DownloadDir, name), key, known)
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
			logger.Error("Filing download failed", "topic", topic, "file", name, "error", err)
			continue
		}
		if !accepted {
			h.metrics.RecordDuplicate(topic)
			continue
		}

		report.Accepted++
		if h.ingester == nil {
			continue
		}
		msg, err := h.ingester.Ingest(ctx, dest)
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
			logger.Error("Ingestion failed", "topic", topic, "path", dest, "error", err)
			continue
		}
		if msg != "" {
			logger.Info(msg)
		}
	}
}
