package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/i2y/misperer/internal/domain"
)

// toolHandlers carries what every handler needs: the shared collaborator,
// the per-event locks and a logger.
type toolHandlers struct {
	client MISPClient
	events *keyedMutex
	logger *slog.Logger
}

// rawResult passes a platform answer through as text. An empty answer yields
// no content at all.
func rawResult(raw json.RawMessage) domain.Result {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return domain.Result{}
	}
	return domain.TextResult(text)
}

func boolPtr(v bool) *bool { return &v }

func (h *toolHandlers) search(ctx context.Context, q domain.SearchQuery) (domain.Result, error) {
	h.logger.Debug("Searching", slog.String("controller", q.Controller), slog.Bool("metadata", q.Metadata))
	raw, err := h.client.Search(ctx, q)
	if err != nil {
		return domain.Result{}, fmt.Errorf("search %s: %w", q.Controller, err)
	}
	return rawResult(raw), nil
}

type searchFromDateArgs struct {
	Date string `json:"date"`
}

func (h *toolHandlers) searchFromDate(ctx context.Context, args searchFromDateArgs) (domain.Result, error) {
	return h.search(ctx, domain.SearchQuery{
		Controller: domain.ControllerEvents,
		Published:  boolPtr(true),
		DateFrom:   args.Date,
		Metadata:   true,
	})
}

type searchFromRangeArgs struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (h *toolHandlers) searchFromRange(ctx context.Context, args searchFromRangeArgs) (domain.Result, error) {
	return h.search(ctx, domain.SearchQuery{
		Controller: domain.ControllerEvents,
		Published:  boolPtr(true),
		DateFrom:   args.Start,
		DateTo:     args.End,
		Metadata:   true,
	})
}

type searchByTagsArgs struct {
	Tags []string `json:"tags"`
}

func (h *toolHandlers) searchByTags(ctx context.Context, args searchByTagsArgs) (domain.Result, error) {
	return h.search(ctx, domain.SearchQuery{
		Controller: domain.ControllerEvents,
		Tags:       args.Tags,
		Metadata:   true,
	})
}

type searchByCreatorArgs struct {
	Creator string `json:"creator"`
}

func (h *toolHandlers) searchByCreator(ctx context.Context, args searchByCreatorArgs) (domain.Result, error) {
	return h.search(ctx, domain.SearchQuery{
		Controller: domain.ControllerEvents,
		Org:        args.Creator,
		Metadata:   true,
	})
}

type getEventByIDArgs struct {
	ID int64 `json:"id"`
}

func (h *toolHandlers) getEventByID(ctx context.Context, args getEventByIDArgs) (domain.Result, error) {
	raw, err := h.client.GetEvent(ctx, strconv.FormatInt(args.ID, 10), false)
	if err != nil {
		return domain.Result{}, fmt.Errorf("get event %d: %w", args.ID, err)
	}
	return rawResult(raw), nil
}

type getEventByUUIDArgs struct {
	UUID string `json:"uuid"`
}

func (h *toolHandlers) getEventByUUID(ctx context.Context, args getEventByUUIDArgs) (domain.Result, error) {
	raw, err := h.client.GetEvent(ctx, args.UUID, true)
	if err != nil {
		return domain.Result{}, fmt.Errorf("get event %s: %w", args.UUID, err)
	}
	return rawResult(raw), nil
}

type noArgs struct{}

func (h *toolHandlers) listOrganisations(ctx context.Context, _ noArgs) (domain.Result, error) {
	raw, err := h.client.Organisations(ctx)
	if err != nil {
		return domain.Result{}, fmt.Errorf("list organisations: %w", err)
	}
	return rawResult(raw), nil
}

type searchByGalaxyArgs struct {
	Galaxy string `json:"galaxy"`
}

// galaxyTag turns a bare cluster value into a wildcard galaxy tag; full
// "misp-galaxy:" tags are used as given.
func galaxyTag(galaxy string) string {
	if strings.HasPrefix(galaxy, "misp-galaxy:") {
		return galaxy
	}
	if strings.Contains(galaxy, "=") {
		return "misp-galaxy:" + galaxy
	}
	return fmt.Sprintf("misp-galaxy:%%=\"%s\"", galaxy)
}

func (h *toolHandlers) searchByGalaxy(ctx context.Context, args searchByGalaxyArgs) (domain.Result, error) {
	return h.search(ctx, domain.SearchQuery{
		Controller: domain.ControllerEvents,
		Tags:       []string{galaxyTag(args.Galaxy)},
		Metadata:   true,
	})
}

type searchByTaxonomyArgs struct {
	Taxonomy string `json:"taxonomy"`
}

func (h *toolHandlers) searchByTaxonomy(ctx context.Context, args searchByTaxonomyArgs) (domain.Result, error) {
	return h.search(ctx, domain.SearchQuery{
		Controller: domain.ControllerEvents,
		Tags:       []string{args.Taxonomy},
		Metadata:   true,
	})
}

type searchByAttributeArgs struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (h *toolHandlers) searchByAttribute(ctx context.Context, args searchByAttributeArgs) (domain.Result, error) {
	return h.search(ctx, domain.SearchQuery{
		Controller:    domain.ControllerAttributes,
		TypeAttribute: args.Type,
		Value:         args.Value,
	})
}

type searchByObjectArgs struct {
	Object string `json:"object"`
}

func (h *toolHandlers) searchByObject(ctx context.Context, args searchByObjectArgs) (domain.Result, error) {
	return h.search(ctx, domain.SearchQuery{
		Controller: domain.ControllerEvents,
		ObjectName: args.Object,
	})
}

type searchByValueArgs struct {
	Value string `json:"value"`
}

func (h *toolHandlers) searchByValue(ctx context.Context, args searchByValueArgs) (domain.Result, error) {
	return h.search(ctx, domain.SearchQuery{
		Controller: domain.ControllerEvents,
		Value:      args.Value,
	})
}

type complexQueryArgs struct {
	Values []string `json:"values"`
}

func (h *toolHandlers) complexQuery(ctx context.Context, args complexQueryArgs) (domain.Result, error) {
	return h.search(ctx, domain.SearchQuery{
		Controller: domain.ControllerEvents,
		Value:      h.client.BuildComplexQuery(args.Values, nil, nil),
		Metadata:   true,
	})
}

type searchUpdatedSinceArgs struct {
	Timestamp string `json:"timestamp"`
	Until     string `json:"until"`
}

func (h *toolHandlers) searchUpdatedSince(ctx context.Context, args searchUpdatedSinceArgs) (domain.Result, error) {
	var ts any = args.Timestamp
	if args.Until != "" {
		ts = []string{args.Timestamp, args.Until}
	}
	return h.search(ctx, domain.SearchQuery{
		Controller: domain.ControllerEvents,
		Timestamp:  ts,
		Metadata:   true,
	})
}

type getLogsArgs struct {
	Model  string `json:"model"`
	Action string `json:"action"`
	Limit  int    `json:"limit"`
	Page   int    `json:"page"`
}

// defaultLogLimit bounds the log listing when the caller gives no limit.
const defaultLogLimit = 50

func (h *toolHandlers) getLogs(ctx context.Context, args getLogsArgs) (domain.Result, error) {
	q := domain.LogQuery{Model: args.Model, Action: args.Action, Limit: args.Limit, Page: args.Page}
	if q.Limit <= 0 {
		q.Limit = defaultLogLimit
	}
	raw, err := h.client.Logs(ctx, q)
	if err != nil {
		return domain.Result{}, fmt.Errorf("fetch logs: %w", err)
	}
	return rawResult(raw), nil
}

func (h *toolHandlers) listUsers(ctx context.Context, _ noArgs) (domain.Result, error) {
	raw, err := h.client.Users(ctx)
	if err != nil {
		return domain.Result{}, fmt.Errorf("list users: %w", err)
	}
	return rawResult(raw), nil
}
