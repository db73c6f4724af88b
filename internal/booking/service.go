// Package booking is the default booking collaborator: it records the
// collected slots as an appointment row. Clinics with an external scheduling
// system swap in their own router.BookingService implementation.
package booking

import (
	"fmt"
	"log"

	"atendeai-backend/internal/models"
	"atendeai-backend/internal/router"

	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Book(req router.BookingRequest) error {
	date := req.Slots["date"]
	slotTime := req.Slots["time"]
	if date == "" || slotTime == "" {
		return fmt.Errorf("booking: missing slot values for %s", req.WaID)
	}

	appointment := models.Appointment{
		WaID: req.WaID,
		Date: date,
		Time: slotTime,
	}
	if err := s.db.Create(&appointment).Error; err != nil {
		return err
	}
	log.Printf("Booked appointment for %s on %s at %s", req.WaID, date, slotTime)
	return nil
}
