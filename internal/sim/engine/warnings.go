package engine

import "fmt"

// Warning records a rejected or corrected decision. Warnings never abort a
// round; the rest of the team's decisions still apply.
type Warning struct {
	Team    TeamID `json:"team"`
	Module  string `json:"module"` // "research" | "patents" | "products" | "pricing" | "events"
	Message string `json:"message"`
}

type warnings struct {
	list []Warning
}

func (w *warnings) addf(team TeamID, module, format string, args ...any) {
	w.list = append(w.list, Warning{Team: team, Module: module, Message: fmt.Sprintf(format, args...)})
}
