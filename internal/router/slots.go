package router

import (
	"time"
)

// Slot is one piece of information the booking flow collects before completion.
type Slot struct {
	Name     string
	Prompt   string
	Reprompt string
	Validate func(value string) bool
}

// DefaultBookingSlots are the slots collected for an appointment: a date and a
// time, in that order.
func DefaultBookingSlots() []Slot {
	return []Slot{
		{
			Name:     "date",
			Prompt:   "Great, let's book your appointment. What date works for you? (YYYY-MM-DD)",
			Reprompt: "That doesn't look like a valid date. Please use the format YYYY-MM-DD.",
			Validate: func(value string) bool {
				_, err := time.Parse("2006-01-02", value)
				return err == nil
			},
		},
		{
			Name:     "time",
			Prompt:   "And what time? (HH:MM, 24-hour)",
			Reprompt: "That doesn't look like a valid time. Please use the format HH:MM.",
			Validate: func(value string) bool {
				_, err := time.Parse("15:04", value)
				return err == nil
			},
		},
	}
}
