package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"interview-orchestrator/internal/ai"
	"interview-orchestrator/internal/events"
	"interview-orchestrator/internal/models"
	"interview-orchestrator/internal/realtime"
	"interview-orchestrator/internal/store"
)

// ScreenHandler scores candidate responses against their vacancy. Re-emitting
// an event for an already screened response re-runs screening; the only dedup
// is the version guard on the result write.
type ScreenHandler struct {
	store  *store.Store
	ai     *ai.Client
	rt     *realtime.Publisher
	leases LeaseExtender
	lease  time.Duration
}

// NewScreenHandler constructs the handler.
func NewScreenHandler(st *store.Store, client *ai.Client, rt *realtime.Publisher, leases LeaseExtender, lease time.Duration) *ScreenHandler {
	return &ScreenHandler{store: st, ai: client, rt: rt, leases: leases, lease: lease}
}

// HandleSingle screens one response.
func (h *ScreenHandler) HandleSingle(ctx context.Context, event models.JobEvent) error {
	payload, err := decodePayload[*events.ResponsePayload](event)
	if err != nil {
		return err
	}
	return h.screenOne(ctx, payload.ResponseID)
}

// HandleNew screens every response of a vacancy that has no score yet,
// streaming progress on the screen-new-responses channel.
func (h *ScreenHandler) HandleNew(ctx context.Context, event models.JobEvent) error {
	payload, err := decodePayload[*events.VacancyScopedPayload](event)
	if err != nil {
		return err
	}
	ch := realtime.ScreenNewResponses(payload.VacancyID)

	responses, err := h.store.ListResponses(ctx, payload.VacancyID, true)
	if err != nil {
		h.publishErrorIfFinal(ctx, event, ch, err)
		return err
	}
	return h.screenSet(ctx, event, ch, responses)
}

// HandleAll re-screens every response of a vacancy.
func (h *ScreenHandler) HandleAll(ctx context.Context, event models.JobEvent) error {
	payload, err := decodePayload[*events.VacancyScopedPayload](event)
	if err != nil {
		return err
	}
	ch := realtime.ScreenAllResponses(payload.VacancyID)

	responses, err := h.store.ListResponses(ctx, payload.VacancyID, false)
	if err != nil {
		h.publishErrorIfFinal(ctx, event, ch, err)
		return err
	}
	return h.screenSet(ctx, event, ch, responses)
}

// HandleBatch screens an explicit set of responses.
func (h *ScreenHandler) HandleBatch(ctx context.Context, event models.JobEvent) error {
	payload, err := decodePayload[*events.ResponseBatchPayload](event)
	if err != nil {
		return err
	}
	ch := realtime.ScreenNewResponses(payload.VacancyID)

	responses := make([]models.Response, 0, len(payload.ResponseIDs))
	for _, id := range payload.ResponseIDs {
		resp, err := h.store.GetResponse(ctx, id)
		if err != nil {
			h.publishErrorIfFinal(ctx, event, ch, err)
			return err
		}
		responses = append(responses, resp)
	}
	return h.screenSet(ctx, event, ch, responses)
}

// screenSet screens responses one by one, publishing a progress snapshot per
// item and exactly one terminal result. Item failures are counted, not fatal.
// Each AI call can run long, so the event's lease is renewed between items.
func (h *ScreenHandler) screenSet(ctx context.Context, event models.JobEvent, ch realtime.Channel, responses []models.Response) error {
	keeper := newLeaseKeeper(h.leases, event.ID, h.lease)
	total := len(responses)
	h.publish(ctx, ch, realtime.TopicProgress, realtime.ProgressMessage{
		Total:  total,
		Status: realtime.StatusStarted,
	})

	processed, failed := 0, 0
	for _, resp := range responses {
		keeper.touch(ctx)
		if err := h.screenOne(ctx, resp.ID); err != nil {
			log.Printf("screen: response %s: %v", resp.ID, err)
			failed++
		} else {
			processed++
		}
		h.publish(ctx, ch, realtime.TopicProgress, realtime.ProgressMessage{
			Processed: processed,
			Failed:    failed,
			Total:     total,
			Status:    realtime.StatusProcessing,
		})
	}

	h.publish(ctx, ch, realtime.TopicResult, realtime.ResultMessage{
		Success:   processed,
		Failed:    failed,
		Total:     total,
		Succeeded: failed == 0,
	})
	return nil
}

func (h *ScreenHandler) screenOne(ctx context.Context, responseID string) error {
	resp, err := h.store.GetResponse(ctx, responseID)
	if err != nil {
		return err
	}
	vacancy, err := h.store.GetVacancy(ctx, resp.VacancyID)
	if err != nil {
		return err
	}

	requirements, err := json.Marshal(vacancy.Requirements)
	if err != nil {
		return fmt.Errorf("marshal requirements: %w", err)
	}

	result, err := h.ai.ScreenResponse(ctx, vacancy.Title, vacancy.Description, string(requirements), resp.ResumeText)
	if err != nil {
		return err
	}

	written, err := h.store.RecordScreenResult(ctx, resp.ID, resp.ScreenedVersion, result.Score, result.Summary)
	if err != nil {
		return err
	}
	if !written {
		// A concurrent invocation advanced the row past our base version.
		log.Printf("screen: response %s result superseded by newer version", resp.ID)
	}
	return nil
}

func (h *ScreenHandler) publish(ctx context.Context, ch realtime.Channel, topic string, msg any) {
	if err := h.rt.Publish(ctx, ch, topic, msg); err != nil {
		log.Printf("screen: publish %s/%s: %v", ch.Key, topic, err)
	}
}

func (h *ScreenHandler) publishErrorIfFinal(ctx context.Context, event models.JobEvent, ch realtime.Channel, cause error) {
	if !lastAttempt(event) {
		return
	}
	h.publish(ctx, ch, realtime.TopicResult, realtime.ResultMessage{
		Succeeded: false,
		Detail:    cause.Error(),
	})
}

// decodePayload converts the stored raw payload into its registered variant.
func decodePayload[T events.Payload](event models.JobEvent) (T, error) {
	var zero T
	p, err := events.Decode(event.Name, event.Payload)
	if err != nil {
		return zero, err
	}
	typed, ok := p.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected payload type %T for %s", p, event.Name)
	}
	return typed, nil
}
