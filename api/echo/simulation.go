package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/elimisha/maabara/core"
	"github.com/elimisha/maabara/core/simulation"
)

type simulationApi struct {
	service simulation.Service
	games   core.GameContentService
}

func registerSimulationAPI(g *echo.Group, service simulation.Service, games core.GameContentService) {
	a := simulationApi{service: service, games: games}

	sg := g.Group("/simulations")
	sg.POST("", a.simulationCreate)
	sg.GET("", a.simulationQuery)

	// detail endpoints
	dg := sg.Group("/:id", objectIDMiddleware())
	dg.GET("", a.simulationRetrieve)
	dg.DELETE("", a.simulationDestroy)
	dg.POST("/start", a.simulationStart)
	dg.POST("/pause", a.simulationPause)
	dg.POST("/resume", a.simulationResume)
	dg.PATCH("/state", a.simulationUpdateState)
	dg.POST("/complete", a.simulationComplete)

	cg := g.Group("/content")
	cg.POST("/game", a.contentGenerateGame)
	cg.POST("/experiment", a.contentGenerateExperiment)
}

// Handlers

func (api *simulationApi) simulationCreate(c echo.Context) error {
	data := new(simulation.NewSimulation)
	if err := c.Bind(data); err != nil {
		return err
	}

	sim, err := api.service.Create(*data)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, sim)
}

func (api *simulationApi) simulationQuery(c echo.Context) error {
	filter := new(SimulationFilter)
	filter.Bind(c)

	res, err := api.service.Filter(filter.Filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (api *simulationApi) simulationRetrieve(c echo.Context) error {
	sim, err := api.service.GetByID(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sim)
}

func (api *simulationApi) simulationDestroy(c echo.Context) error {
	if err := api.service.Delete(c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (api *simulationApi) simulationStart(c echo.Context) error {
	sim, err := api.service.Start(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, TransitionResponse{Success: true, Version: sim.Version})
}

func (api *simulationApi) simulationPause(c echo.Context) error {
	sim, err := api.service.Pause(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, TransitionResponse{Success: true, Version: sim.Version})
}

func (api *simulationApi) simulationResume(c echo.Context) error {
	sim, err := api.service.Resume(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, TransitionResponse{Success: true, Version: sim.Version})
}

func (api *simulationApi) simulationUpdateState(c echo.Context) error {
	data := new(simulation.StatePatch)
	if err := c.Bind(data); err != nil {
		return err
	}

	sim, err := api.service.UpdateState(c.Param("id"), *data)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, TransitionResponse{Success: true, Version: sim.Version})
}

func (api *simulationApi) simulationComplete(c echo.Context) error {
	data := new(simulation.FinalResults)
	if err := c.Bind(data); err != nil {
		return err
	}

	sim, err := api.service.Complete(c.Param("id"), *data)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sim)
}

func (api *simulationApi) contentGenerateGame(c echo.Context) error {
	data := new(GenerateContentRequest)
	if err := c.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(); err != nil {
		return err
	}

	payload, err := api.games.GenerateGame(c.Request().Context(), data.Prompt)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payload)
}

func (api *simulationApi) contentGenerateExperiment(c echo.Context) error {
	data := new(GenerateContentRequest)
	if err := c.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(); err != nil {
		return err
	}

	content, err := api.games.GenerateExperimentContent(c.Request().Context(), data.Prompt)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, content)
}

func objectIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Param("id") == "" {
				return errHttpNotFound
			}
			return next(c)
		}
	}
}

type TransitionResponse struct {
	Success bool `json:"success"`
	Version int  `json:"version"`
}
