package lifecycle

import "github.com/sadiqgoni/GreenCycle/internal/models"

// FormDefaults suggests payload values for action. Accept takes the
// household's preferred slot and complete takes the estimated cost.
// It returns nil when there is nothing to suggest.
func FormDefaults(r models.ServiceRequest, action ActionKind) *models.ActionDefaults {
	switch action {
	case ActionAccept:
		var d models.ActionDefaults
		if r.PreferredDate != nil {
			date := r.PreferredDate.Format("2006-01-02")
			d.ScheduledDate = &date
		}
		if r.PreferredTime != nil && *r.PreferredTime != "" {
			clock := *r.PreferredTime
			d.ScheduledTime = &clock
		}
		if d.ScheduledDate == nil && d.ScheduledTime == nil {
			return nil
		}
		return &d
	case ActionComplete:
		if !r.EstimatedCost.Valid {
			return nil
		}
		amount := r.EstimatedCost.Decimal
		return &models.ActionDefaults{FinalAmount: &amount}
	}
	return nil
}

// DefaultsFor collects FormDefaults for each of actions, keyed by action name
func DefaultsFor(r models.ServiceRequest, actions []ActionKind) map[string]models.ActionDefaults {
	var out map[string]models.ActionDefaults
	for _, a := range actions {
		d := FormDefaults(r, a)
		if d == nil {
			continue
		}
		if out == nil {
			out = make(map[string]models.ActionDefaults)
		}
		out[string(a)] = *d
	}
	return out
}
