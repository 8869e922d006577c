package main

import (
	"context"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/patrickmn/go-cache"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/askpdf/internal/models"
	"github.com/xhad/askpdf/pkg/session"
)

func getProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() { io.WriteString(w, "\n") }),
	)
}

func getSpinner(w io.Writer, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

const statusKey = "status"

// statusCache keeps the last backend probe for a while so the prompt badge
// does not hit the backend on every line.
type statusCache struct {
	controller *session.Controller
	cache      *cache.Cache
}

func newStatusCache(controller *session.Controller, ttl time.Duration) *statusCache {
	return &statusCache{
		controller: controller,
		cache:      cache.New(ttl, 2*ttl),
	}
}

func (s *statusCache) Get(ctx context.Context) models.StatusSnapshot {
	if x, found := s.cache.Get(statusKey); found {
		return x.(models.StatusSnapshot)
	}
	snapshot := s.controller.RefreshStatus(ctx)
	s.cache.SetDefault(statusKey, snapshot)
	return snapshot
}

func (s *statusCache) Refresh(ctx context.Context) models.StatusSnapshot {
	s.Invalidate()
	return s.Get(ctx)
}

func (s *statusCache) Invalidate() {
	s.cache.Delete(statusKey)
}

func badge(snapshot models.StatusSnapshot) string {
	if snapshot.Connected {
		return color.GreenString("● Online")
	}
	return color.RedString("● Offline")
}
