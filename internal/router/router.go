// Package router classifies admitted inbound messages and drives the
// per-contact conversation state machine. All mutation of a contact's session
// is serialized through a per-contact lock; different contacts proceed in
// parallel.
package router

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"atendeai-backend/internal/memory"
	"atendeai-backend/internal/models"
)

// InboundEvent is one admitted message from the webhook pipeline.
type InboundEvent struct {
	MessageID  string
	From       string
	SenderName string
	Timestamp  time.Time
	Content    string
	Type       string
}

// BookingRequest carries the collected slot values to the booking collaborator.
type BookingRequest struct {
	WaID  string
	Slots map[string]string
}

// BookingService performs the actual appointment booking. Retry policy, if
// any, belongs to the implementation; the router reports failures and moves on.
type BookingService interface {
	Book(req BookingRequest) error
}

const (
	cancelledMessage = "Booking cancelled. Send \"book\" whenever you want to start again."
	confirmedMessage = "Your appointment is booked! We'll see you then."
	failedMessage    = "Sorry, we couldn't complete your booking right now. Please try again later."
	errorMessage     = "Something went wrong on our side. Please try again."
)

type Router struct {
	store       *memory.Store
	booking     BookingService
	slots       []Slot
	maxRetries  int
	idleTimeout time.Duration

	// Generic produces the reply for messages outside any flow.
	Generic func(event InboundEvent) string

	locks struct {
		mu sync.Mutex
		m  map[string]*sync.Mutex
	}
	now func() time.Time
}

func New(store *memory.Store, booking BookingService, slots []Slot, maxRetries int, idleTimeout time.Duration) *Router {
	r := &Router{
		store:       store,
		booking:     booking,
		slots:       slots,
		maxRetries:  maxRetries,
		idleTimeout: idleTimeout,
		Generic:     defaultGenericReply,
		now:         time.Now,
	}
	r.locks.m = make(map[string]*sync.Mutex)
	return r
}

// Route processes one admitted event and returns exactly one reply. The
// inbound content and the reply are appended to the contact's memory, in that
// order, before returning. Once a reply exists it is always returned: a memory
// write failure is logged, not allowed to swallow the reply.
func (r *Router) Route(event InboundEvent) (string, error) {
	lock := r.contactLock(event.From)
	lock.Lock()
	defer lock.Unlock()

	if err := r.store.EnsureContact(event.From, event.SenderName); err != nil {
		log.Printf("Error saving contact %s: %v", event.From, err)
	}

	reply := r.process(event)

	if err := r.store.Append(event.From, memory.RoleUser, event.Content, event.Timestamp); err != nil {
		log.Printf("Error recording inbound message %s: %v", event.MessageID, err)
	}
	if err := r.store.Append(event.From, memory.RoleAssistant, reply, r.now()); err != nil {
		log.Printf("Error recording reply to %s: %v", event.From, err)
	}
	return reply, nil
}

// process runs the state machine. Panics are caught here so a routing bug
// degrades into a generic failure reply instead of taking down the process.
func (r *Router) process(event InboundEvent) (reply string) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("Recovered from panic routing message %s: %v", event.MessageID, rec)
			reply = errorMessage
		}
	}()

	session, err := r.store.GetSession(event.From)
	if err != nil {
		log.Printf("Error loading session for %s: %v", event.From, err)
		return errorMessage
	}

	// An idle booking flow is timed out lazily on the next inbound message,
	// same outcome as the max-retries cancellation.
	if session.Flow != memory.FlowNone && r.idleTimeout > 0 && r.now().Sub(session.UpdatedAt) > r.idleTimeout {
		log.Printf("Booking flow for %s timed out, resetting", event.From)
		session = r.resetSession(session)
	}

	switch session.Flow {
	case memory.FlowBooking:
		return r.continueBooking(session, event)
	default:
		return r.classify(session, event)
	}
}

// classify handles messages arriving outside an active flow.
func (r *Router) classify(session models.SessionState, event InboundEvent) string {
	if event.Type == "text" && isBookingIntent(event.Content) {
		session.Flow = memory.FlowBooking
		session.Slots = "{}"
		session.Retries = 0
		if err := r.store.SetSession(session); err != nil {
			log.Printf("Error starting booking for %s: %v", event.From, err)
			return errorMessage
		}
		return r.slots[0].Prompt
	}
	return r.Generic(event)
}

// continueBooking validates the message against the currently requested slot.
func (r *Router) continueBooking(session models.SessionState, event InboundEvent) string {
	slots := parseSlots(session.Slots)

	slot, ok := r.nextMissingSlot(slots)
	if !ok {
		// All slots already filled; shouldn't normally happen, complete anyway.
		return r.complete(session, slots)
	}

	value := strings.TrimSpace(event.Content)
	if !slot.Validate(value) {
		session.Retries++
		if session.Retries > r.maxRetries {
			r.resetSession(session)
			return cancelledMessage
		}
		if err := r.store.SetSession(session); err != nil {
			log.Printf("Error saving retry count for %s: %v", event.From, err)
		}
		return slot.Reprompt
	}

	slots[slot.Name] = value
	session.Slots = encodeSlots(slots)
	session.Retries = 0

	if next, ok := r.nextMissingSlot(slots); ok {
		if err := r.store.SetSession(session); err != nil {
			log.Printf("Error saving slot for %s: %v", event.From, err)
			return errorMessage
		}
		return next.Prompt
	}

	session.Flow = memory.FlowCompleting
	if err := r.store.SetSession(session); err != nil {
		log.Printf("Error advancing to completion for %s: %v", event.From, err)
		return errorMessage
	}
	return r.complete(session, slots)
}

// complete invokes the booking collaborator once and resets the flow. Failures
// are reported to the contact, never silently retried here.
func (r *Router) complete(session models.SessionState, slots map[string]string) string {
	err := r.booking.Book(BookingRequest{WaID: session.WaID, Slots: slots})
	r.resetSession(session)
	if err != nil {
		log.Printf("Booking failed for %s: %v", session.WaID, err)
		return failedMessage
	}
	return confirmedMessage
}

func (r *Router) resetSession(session models.SessionState) models.SessionState {
	session.Flow = memory.FlowNone
	session.Slots = "{}"
	session.Retries = 0
	if err := r.store.SetSession(session); err != nil {
		log.Printf("Error resetting session for %s: %v", session.WaID, err)
	}
	return session
}

func (r *Router) nextMissingSlot(filled map[string]string) (Slot, bool) {
	for _, slot := range r.slots {
		if _, ok := filled[slot.Name]; !ok {
			return slot, true
		}
	}
	return Slot{}, false
}

func (r *Router) contactLock(waID string) *sync.Mutex {
	r.locks.mu.Lock()
	defer r.locks.mu.Unlock()
	lock, ok := r.locks.m[waID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks.m[waID] = lock
	}
	return lock
}

var bookingKeywords = []string{"book", "booking", "appointment", "agendar", "schedule"}

func isBookingIntent(message string) bool {
	message = strings.ToLower(strings.TrimSpace(message))
	for _, kw := range bookingKeywords {
		if strings.Contains(message, kw) {
			return true
		}
	}
	return false
}

func defaultGenericReply(event InboundEvent) string {
	if event.Type != "text" {
		return "Thanks! We can only handle text messages for now. Send \"book\" to schedule an appointment."
	}
	return "Hi! I can help you schedule an appointment. Send \"book\" to get started."
}

func parseSlots(raw string) map[string]string {
	slots := make(map[string]string)
	if raw != "" {
		json.Unmarshal([]byte(raw), &slots)
	}
	return slots
}

func encodeSlots(slots map[string]string) string {
	raw, _ := json.Marshal(slots)
	return string(raw)
}
