package views

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/RegistryAccord/vidhub-go/internal/model"
)

// HomeGroupSize is the number of videos fetched per home section.
const HomeGroupSize = 8

// HomeSection names one feed section of the home page.
type HomeSection string

const (
	SectionTrending    HomeSection = "trending"
	SectionRecommended HomeSection = "recommended"
	SectionNew         HomeSection = "new"
	SectionShorts      HomeSection = "shorts"
)

// HomeSections lists the sections in display order.
var HomeSections = []HomeSection{SectionTrending, SectionShorts, SectionRecommended, SectionNew}

// sectionQuery is the listing each section issues.
func sectionQuery(s HomeSection) model.VideoListOptions {
	switch s {
	case SectionTrending:
		return model.VideoListOptions{Limit: HomeGroupSize, OrderBy: "views:desc"}
	case SectionNew:
		return model.VideoListOptions{Limit: HomeGroupSize, OrderBy: "created_at:desc"}
	case SectionShorts:
		return model.VideoListOptions{Limit: HomeGroupSize, IsShort: model.Bool(true)}
	default:
		return model.VideoListOptions{Limit: HomeGroupSize}
	}
}

// HomeGroup is one section's outcome.
type HomeGroup struct {
	Videos []model.Video `json:"videos"`
	Failed bool          `json:"failed"`
}

// HomeView is a snapshot of the home page.
type HomeView struct {
	Phase   Phase                     `json:"phase"`
	Groups  map[HomeSection]HomeGroup `json:"groups"`
	Notices []Notice                  `json:"notices,omitempty"`
}

// Home aggregates the four feed sections. Sections load concurrently and fail
// independently.
type Home struct {
	*tracker
	gw     Backend
	groups map[HomeSection]HomeGroup
}

// NewHome creates an idle home controller.
func NewHome(gw Backend, logger *slog.Logger) *Home {
	return &Home{tracker: newTracker(logger), gw: gw, groups: map[HomeSection]HomeGroup{}}
}

// Load fetches every section. It fails only when every section fails.
func (h *Home) Load(ctx context.Context) error {
	gen := h.begin()

	results := make([]HomeGroup, len(HomeSections))
	errs := make([]error, len(HomeSections))
	var g errgroup.Group
	for i, section := range HomeSections {
		i, section := i, section
		g.Go(func() error {
			videos, err := h.gw.ListVideos(ctx, sectionQuery(section))
			if err != nil {
				errs[i] = err
				results[i] = HomeGroup{Videos: []model.Video{}, Failed: true}
				return nil
			}
			results[i] = HomeGroup{Videos: videos}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	var lastErr error
	for i, err := range errs {
		if err != nil {
			failed++
			lastErr = err
			h.logger.ErrorContext(ctx, "home section failed",
				slog.String("section", string(HomeSections[i])),
				slog.String("error", err.Error()))
		}
	}
	if failed == len(HomeSections) {
		return h.fail(ctx, gen, lastErr, "Failed to load videos")
	}
	h.commit(gen, func() {
		for i, section := range HomeSections {
			h.groups[section] = results[i]
		}
		if failed > 0 {
			h.notices = append(h.notices, Notice{Kind: NoticeError, Message: "Some videos could not be loaded"})
		}
	})
	return nil
}

// Snapshot returns the current state.
func (h *Home) Snapshot() HomeView {
	notices := h.Notices()
	h.mu.Lock()
	defer h.mu.Unlock()
	groups := make(map[HomeSection]HomeGroup, len(h.groups))
	for k, v := range h.groups {
		groups[k] = HomeGroup{Videos: append([]model.Video(nil), v.Videos...), Failed: v.Failed}
	}
	return HomeView{Phase: h.phase, Groups: groups, Notices: notices}
}
