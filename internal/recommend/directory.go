package recommend

import (
	"context"

	"github.com/lettuce/party-app/internal/event"
	"github.com/lettuce/party-app/internal/profile"
)

// StoreDirectory implements Directory over the PostgreSQL profile and event
// stores. It only converts shapes; all querying stays in the stores.
type StoreDirectory struct {
	profiles *profile.Store
	events   *event.Store
}

// NewStoreDirectory creates a Directory reading from the given stores.
func NewStoreDirectory(profiles *profile.Store, events *event.Store) *StoreDirectory {
	return &StoreDirectory{profiles: profiles, events: events}
}

func (d *StoreDirectory) UserInterests(ctx context.Context, userID string) ([]string, error) {
	return d.profiles.Interests(ctx, userID)
}

func (d *StoreDirectory) UserEventIDs(ctx context.Context, userID string) ([]string, error) {
	return d.events.UserEventIDs(ctx, userID)
}

func (d *StoreDirectory) ActiveEvents(ctx context.Context) ([]Event, error) {
	events, err := d.events.ActiveEvents(ctx)
	if err != nil {
		return nil, err
	}
	return convertEvents(events), nil
}

func (d *StoreDirectory) RecentActiveEvents(ctx context.Context, limit int) ([]Event, error) {
	events, err := d.events.RecentActiveEvents(ctx, limit)
	if err != nil {
		return nil, err
	}
	return convertEvents(events), nil
}

func (d *StoreDirectory) AttendeeCount(ctx context.Context, eventID string) (int, error) {
	return d.events.AttendeeCount(ctx, eventID)
}

func (d *StoreDirectory) OtherProfiles(ctx context.Context, excludingUserID string) ([]Profile, error) {
	profiles, err := d.profiles.Others(ctx, excludingUserID)
	if err != nil {
		return nil, err
	}

	out := make([]Profile, len(profiles))
	for i, p := range profiles {
		out[i] = Profile{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			AvatarURL:   p.AvatarURL,
		}
	}
	return out, nil
}

func convertEvents(events []event.Event) []Event {
	out := make([]Event, len(events))
	for i, ev := range events {
		out[i] = Event{
			ID:           ev.ID,
			Name:         ev.Name,
			Description:  ev.Description,
			Interests:    ev.Interests,
			StartTime:    ev.StartTime,
			MaxAttendees: ev.MaxAttendees,
			Tier:         string(ev.Tier),
			PartyCode:    ev.PartyCode,
			CreatedBy:    ev.CreatedBy,
			CreatedAt:    ev.CreatedAt,
		}
	}
	return out
}
