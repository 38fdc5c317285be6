package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/openclaw-gurusharan/ondc-seller/internal/http/dto"
	"github.com/openclaw-gurusharan/ondc-seller/internal/models"
)

type MetaHandler struct{}

func NewMetaHandler() *MetaHandler {
	return &MetaHandler{}
}

type MetaStatus struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Terminal    bool     `json:"terminal"`
	Transitions []string `json:"transitions"`
}

var statusOrder = []models.EscrowStatus{
	models.EscrowStatusPending,
	models.EscrowStatusFunded,
	models.EscrowStatusReleaseRequested,
	models.EscrowStatusApproved,
	models.EscrowStatusReleased,
	models.EscrowStatusCancelled,
	models.EscrowStatusDisputed,
}

var statusLabels = map[models.EscrowStatus]string{
	models.EscrowStatusPending:          "Awaiting payment",
	models.EscrowStatusFunded:           "Funded",
	models.EscrowStatusReleaseRequested: "Release requested",
	models.EscrowStatusApproved:         "Approved by all parties",
	models.EscrowStatusReleased:         "Released to seller",
	models.EscrowStatusCancelled:        "Cancelled",
	models.EscrowStatusDisputed:         "Disputed",
}

// GetStatuses lists escrow statuses with the transitions the dashboard may offer from each.
func (h *MetaHandler) GetStatuses(c *fiber.Ctx) error {
	out := make([]MetaStatus, 0, len(statusOrder))
	for _, s := range statusOrder {
		next := make([]string, 0, len(models.ValidEscrowTransitions[s]))
		for _, to := range models.ValidEscrowTransitions[s] {
			next = append(next, string(to))
		}
		out = append(out, MetaStatus{
			ID:          string(s),
			Label:       statusLabels[s],
			Terminal:    s.IsTerminal(),
			Transitions: next,
		})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: out})
}
