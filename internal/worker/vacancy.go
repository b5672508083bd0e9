package worker

import (
	"context"
	"fmt"
	"log"

	"interview-orchestrator/internal/ai"
	"interview-orchestrator/internal/dispatch"
	"interview-orchestrator/internal/events"
	"interview-orchestrator/internal/hr"
	"interview-orchestrator/internal/models"
	"interview-orchestrator/internal/realtime"
	"interview-orchestrator/internal/secrets"
	"interview-orchestrator/internal/store"
)

// VacancyHandler syncs vacancies and their responses from the external HR
// board, and extracts structured requirements from vacancy descriptions.
type VacancyHandler struct {
	store   *store.Store
	hr      *hr.Client
	ai      *ai.Client
	box     *secrets.Box
	rt      *realtime.Publisher
	emitter *dispatch.Emitter
}

func NewVacancyHandler(st *store.Store, board *hr.Client, client *ai.Client, box *secrets.Box, rt *realtime.Publisher, emitter *dispatch.Emitter) *VacancyHandler {
	return &VacancyHandler{store: st, hr: board, ai: client, box: box, rt: rt, emitter: emitter}
}

// HandleUpdate refreshes one vacancy from the board, then chains a refresh of
// its responses.
func (h *VacancyHandler) HandleUpdate(ctx context.Context, event models.JobEvent) error {
	payload, err := decodePayload[*events.VacancyScopedPayload](event)
	if err != nil {
		return err
	}

	vacancy, err := h.store.GetVacancy(ctx, payload.VacancyID)
	if err != nil {
		return err
	}
	creds, err := workspaceCredentials(ctx, h.store, h.box, vacancy.WorkspaceID)
	if err != nil {
		return err
	}

	remote, err := h.hr.GetVacancy(ctx, creds, vacancy.ExternalID)
	if err != nil {
		return err
	}
	if err := h.store.UpdateVacancyDetails(ctx, vacancy.ID, remote.Name, remote.Description, !remote.Archived); err != nil {
		return err
	}
	if remote.Archived {
		log.Printf("vacancy: %s archived on the board, skipping response refresh", vacancy.ID)
		return nil
	}

	_, err = h.emitter.EmitWith(ctx, events.VacancyResponsesRefresh,
		&events.VacancyScopedPayload{VacancyID: vacancy.ID},
		dispatch.Options{Tenant: event.Tenant})
	return err
}

// HandleUpdateActive fans one update event out per active vacancy.
func (h *VacancyHandler) HandleUpdateActive(ctx context.Context, event models.JobEvent) error {
	if _, err := decodePayload[*events.EmptyPayload](event); err != nil {
		return err
	}

	vacancies, err := h.store.ListActiveVacancies(ctx)
	if err != nil {
		return err
	}
	for _, v := range vacancies {
		_, err := h.emitter.EmitWith(ctx, events.VacancyUpdate,
			&events.VacancyScopedPayload{VacancyID: v.ID},
			dispatch.Options{Tenant: event.Tenant})
		if err != nil {
			return err
		}
	}
	return nil
}

// HandleResponsesRefresh pulls the board's responses for a vacancy, upserts
// them, and chains screening plus resume parsing when new rows appeared.
func (h *VacancyHandler) HandleResponsesRefresh(ctx context.Context, event models.JobEvent) error {
	payload, err := decodePayload[*events.VacancyScopedPayload](event)
	if err != nil {
		return err
	}
	ch := realtime.VacancyRefresh(payload.VacancyID)

	vacancy, err := h.store.GetVacancy(ctx, payload.VacancyID)
	if err != nil {
		h.statusErrorIfFinal(ctx, event, ch, err)
		return err
	}
	creds, err := workspaceCredentials(ctx, h.store, h.box, vacancy.WorkspaceID)
	if err != nil {
		h.statusErrorIfFinal(ctx, event, ch, err)
		return err
	}

	h.publishStatus(ctx, ch, realtime.StatusMessage{Status: realtime.StatusStarted})

	remote, err := h.hr.ListResponses(ctx, creds, vacancy.ExternalID)
	if err != nil {
		h.statusErrorIfFinal(ctx, event, ch, err)
		return err
	}

	inserted := 0
	for _, r := range remote {
		_, isNew, err := h.store.UpsertResponse(ctx, vacancy.ID, r.ID, r.CandidateName, r.ResumeText)
		if err != nil {
			h.statusErrorIfFinal(ctx, event, ch, err)
			return err
		}
		if isNew {
			inserted++
		}
	}

	if inserted > 0 {
		opts := dispatch.Options{Tenant: event.Tenant}
		if _, err := h.emitter.EmitWith(ctx, events.ResponseScreenNew,
			&events.VacancyScopedPayload{VacancyID: vacancy.ID}, opts); err != nil {
			return err
		}
		if _, err := h.emitter.EmitWith(ctx, events.ResumeParseNew,
			&events.VacancyScopedPayload{VacancyID: vacancy.ID}, opts); err != nil {
			return err
		}
	}

	h.publishStatus(ctx, ch, realtime.StatusMessage{
		Status: realtime.StatusCompleted,
		Detail: detailNewResponses(inserted),
	})
	return nil
}

// HandleExtractRequirements derives a structured requirements document from
// the vacancy description.
func (h *VacancyHandler) HandleExtractRequirements(ctx context.Context, event models.JobEvent) error {
	payload, err := decodePayload[*events.VacancyScopedPayload](event)
	if err != nil {
		return err
	}
	ch := realtime.ExtractRequirements(payload.VacancyID)

	vacancy, err := h.store.GetVacancy(ctx, payload.VacancyID)
	if err != nil {
		h.statusErrorIfFinal(ctx, event, ch, err)
		return err
	}

	h.publishStatus(ctx, ch, realtime.StatusMessage{Status: realtime.StatusStarted})

	requirements, err := h.ai.ExtractRequirements(ctx, vacancy.Description)
	if err != nil {
		h.statusErrorIfFinal(ctx, event, ch, err)
		return err
	}
	if err := h.store.SetVacancyRequirements(ctx, vacancy.ID, requirements); err != nil {
		h.statusErrorIfFinal(ctx, event, ch, err)
		return err
	}

	h.publishStatus(ctx, ch, realtime.StatusMessage{Status: realtime.StatusCompleted})
	return nil
}

func (h *VacancyHandler) publishStatus(ctx context.Context, ch realtime.Channel, msg realtime.StatusMessage) {
	if err := h.rt.Publish(ctx, ch, realtime.TopicStatus, msg); err != nil {
		log.Printf("vacancy: publish %s: %v", ch.Key, err)
	}
}

func (h *VacancyHandler) statusErrorIfFinal(ctx context.Context, event models.JobEvent, ch realtime.Channel, cause error) {
	if !lastAttempt(event) {
		return
	}
	h.publishStatus(ctx, ch, realtime.StatusMessage{Status: realtime.StatusError, Detail: cause.Error()})
}

func detailNewResponses(n int) string {
	if n == 0 {
		return "no new responses"
	}
	if n == 1 {
		return "1 new response"
	}
	return fmt.Sprintf("%d new responses", n)
}
