package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/elimisha/maabara/core"
	"github.com/elimisha/maabara/core/simulation"
)

type SimulationFilter struct {
	Filter simulation.QueryFilter
}

func (f *SimulationFilter) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}

	f.Filter.StudentID = ctx.QueryParam("student_id")
	f.Filter.Status = simulation.Status(ctx.QueryParam("status"))
	f.Filter.Subject = ctx.QueryParam("subject")
	if val := ctx.QueryParam("gamified"); val != "" {
		if gamified, err := strconv.ParseBool(val); err == nil {
			f.Filter.Gamified = &gamified
		}
	}
	if val := ctx.QueryParam("created_from"); val != "" {
		if t, err := time.Parse(time.RFC3339, val); err == nil {
			f.Filter.CreatedFrom = t
		}
	}
	if val := ctx.QueryParam("created_to"); val != "" {
		if t, err := time.Parse(time.RFC3339, val); err == nil {
			f.Filter.CreatedTo = t
		}
	}
}

type GenerateContentRequest struct {
	Prompt string `json:"prompt" validate:"required,min=10,max=500"`
}

func (r *GenerateContentRequest) Validate() error {
	r.Prompt = core.CleanString(r.Prompt)
	return core.Validate.Struct(r)
}
