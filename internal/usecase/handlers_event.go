package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/i2y/misperer/internal/domain"
)

// Event mutations follow one contract: fetch the current event, change the
// in-memory copy, persist it with an explicit collaborator call, then report
// the changed copy. The per-event lock is held for the whole cycle.

// lockEvent takes the per-event lock. The key is the event's numeric id, so
// calls naming one event by id and by uuid share a lock. A reference that
// cannot be resolved locks on itself; the fetch that follows reports why.
func (h *toolHandlers) lockEvent(ctx context.Context, ref string) (unlock func()) {
	key := ref
	if _, err := strconv.ParseUint(ref, 10, 64); err != nil {
		if raw, err := h.client.GetEvent(ctx, ref, true); err != nil {
			h.logger.Debug("Could not resolve event reference", slog.String("event_ref", ref), slog.Any("error", err))
		} else {
			for _, path := range []string{"response.0.Event.id", "0.Event.id", "Event.id"} {
				if id := gjson.GetBytes(raw, path).String(); id != "" {
					key = id
					break
				}
			}
		}
	}
	return h.events.Lock(key)
}

// fetchEvent loads the full body of an event into its in-memory form.
func (h *toolHandlers) fetchEvent(ctx context.Context, eventID string) (domain.Event, error) {
	raw, err := h.client.GetEvent(ctx, eventID, false)
	if err != nil {
		return domain.Event{}, fmt.Errorf("fetch event %s: %w", eventID, err)
	}
	var env domain.EventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.Event{}, fmt.Errorf("decode event %s: %w", eventID, err)
	}
	if env.Event.ID == "" && env.Event.UUID == "" {
		return domain.Event{}, fmt.Errorf("event %s: platform returned no event body", eventID)
	}
	return env.Event, nil
}

// eventResult renders an event the way the platform wraps it.
func eventResult(event domain.Event) (domain.Result, error) {
	data, err := json.Marshal(domain.EventEnvelope{Event: event})
	if err != nil {
		return domain.Result{}, fmt.Errorf("encode event: %w", err)
	}
	return domain.TextResult(string(data)), nil
}

// persistedID is the identifier to send back to the platform: the numeric id
// when the fetched body has one, otherwise the reference the caller used.
func persistedID(event domain.Event, ref string) string {
	if event.ID != "" {
		return string(event.ID)
	}
	return ref
}

type createEventArgs struct {
	Info          string `json:"info"`
	Distribution  *int   `json:"distribution"`
	ThreatLevelID *int   `json:"threat_level_id"`
	Analysis      *int   `json:"analysis"`
	Date          string `json:"date"`
}

func optionalID(v *int) domain.ID {
	if v == nil {
		return ""
	}
	return domain.ID(strconv.Itoa(*v))
}

func (h *toolHandlers) createEvent(ctx context.Context, args createEventArgs) (domain.Result, error) {
	event := domain.Event{
		Info:          args.Info,
		Date:          args.Date,
		Distribution:  optionalID(args.Distribution),
		ThreatLevelID: optionalID(args.ThreatLevelID),
		Analysis:      optionalID(args.Analysis),
	}
	raw, err := h.client.AddEvent(ctx, event)
	if err != nil {
		return domain.Result{}, fmt.Errorf("create event: %w", err)
	}
	h.logger.Info("Event created", slog.String("info", args.Info))
	return rawResult(raw), nil
}

type addAttributeArgs struct {
	EventID  string `json:"event_id"`
	Type     string `json:"type"`
	Value    string `json:"value"`
	Category string `json:"category"`
	ToIDs    bool   `json:"to_ids"`
	Comment  string `json:"comment"`
}

func (h *toolHandlers) addAttribute(ctx context.Context, args addAttributeArgs) (domain.Result, error) {
	unlock := h.lockEvent(ctx, args.EventID)
	defer unlock()

	event, err := h.fetchEvent(ctx, args.EventID)
	if err != nil {
		return domain.Result{}, err
	}
	event.Attributes = append(event.Attributes, domain.Attribute{
		Type:     args.Type,
		Value:    args.Value,
		Category: args.Category,
		ToIDs:    args.ToIDs,
		Comment:  args.Comment,
	})
	if _, err := h.client.UpdateEvent(ctx, event); err != nil {
		return domain.Result{}, fmt.Errorf("update event %s: %w", args.EventID, err)
	}
	h.logger.Info("Attribute added", slog.String("event_id", args.EventID), slog.String("type", args.Type))
	return eventResult(event)
}

type createObjectArgs struct {
	EventID   string `json:"event_id"`
	Domain    string `json:"domain"`
	IP        string `json:"ip"`
	FirstSeen string `json:"first_seen"`
	LastSeen  string `json:"last_seen"`
}

func (h *toolHandlers) createObject(ctx context.Context, args createObjectArgs) (domain.Result, error) {
	unlock := h.lockEvent(ctx, args.EventID)
	defer unlock()

	event, err := h.fetchEvent(ctx, args.EventID)
	if err != nil {
		return domain.Result{}, err
	}
	obj := domain.NewDomainIPObject(domain.DomainIP{
		Domain:    args.Domain,
		IP:        args.IP,
		FirstSeen: args.FirstSeen,
		LastSeen:  args.LastSeen,
	})
	event.Objects = append(event.Objects, obj)
	if _, err := h.client.UpdateEvent(ctx, event); err != nil {
		return domain.Result{}, fmt.Errorf("update event %s: %w", args.EventID, err)
	}
	h.logger.Info("Object added", slog.String("event_id", args.EventID), slog.String("object_uuid", obj.UUID))
	return eventResult(event)
}

type eventRefArgs struct {
	EventID string `json:"event_id"`
}

func (h *toolHandlers) publishEvent(ctx context.Context, args eventRefArgs) (domain.Result, error) {
	unlock := h.lockEvent(ctx, args.EventID)
	defer unlock()

	event, err := h.fetchEvent(ctx, args.EventID)
	if err != nil {
		return domain.Result{}, err
	}
	event.Published = true
	if _, err := h.client.PublishEvent(ctx, persistedID(event, args.EventID)); err != nil {
		return domain.Result{}, fmt.Errorf("publish event %s: %w", args.EventID, err)
	}
	h.logger.Info("Event published", slog.String("event_id", args.EventID))
	return eventResult(event)
}

type deleteAttributeArgs struct {
	EventID     string `json:"event_id"`
	AttributeID string `json:"attribute_id"`
}

func (h *toolHandlers) deleteAttribute(ctx context.Context, args deleteAttributeArgs) (domain.Result, error) {
	unlock := h.lockEvent(ctx, args.EventID)
	defer unlock()

	event, err := h.fetchEvent(ctx, args.EventID)
	if err != nil {
		return domain.Result{}, err
	}
	attr, ok := event.FindAttribute(args.AttributeID)
	if !ok {
		return domain.TextResult(fmt.Sprintf("Attribute %s not found in event %s", args.AttributeID, args.EventID)), nil
	}
	attr.Deleted = true
	ref := string(attr.ID)
	if ref == "" {
		ref = attr.UUID
	}
	if _, err := h.client.DeleteAttribute(ctx, ref, false); err != nil {
		return domain.Result{}, fmt.Errorf("delete attribute %s: %w", args.AttributeID, err)
	}
	h.logger.Info("Attribute soft-deleted", slog.String("event_id", args.EventID), slog.String("attribute_id", ref))
	return eventResult(event)
}

func (h *toolHandlers) deleteEvent(ctx context.Context, args eventRefArgs) (domain.Result, error) {
	unlock := h.lockEvent(ctx, args.EventID)
	defer unlock()

	if _, err := h.client.DeleteEvent(ctx, args.EventID); err != nil {
		return domain.Result{}, fmt.Errorf("delete event %s: %w", args.EventID, err)
	}
	return domain.TextResult(fmt.Sprintf("Event %s deleted", args.EventID)), nil
}
