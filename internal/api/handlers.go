package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/geobrowser/internal/allocator"
	"github.com/sells-group/geobrowser/internal/browser"
	"github.com/sells-group/geobrowser/internal/electoral"
	"github.com/sells-group/geobrowser/internal/filter"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	data := s.sessions.Datasets()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"electoral": data.Electoral != nil,
		"boundary":  data.Boundary != nil,
		"notices":   data.Notices,
		"sessions":  s.sessions.Stats(),
	})
}

func (s *Server) handleElectoralData(w http.ResponseWriter, r *http.Request) {
	var ds *electoral.Dataset
	if s.opts.Store != nil {
		stored, err := s.opts.Store.LoadDataset(r.Context())
		if err != nil {
			s.log.Debug("no stored dataset, serving loaded one", zap.Error(err))
		} else {
			ds = stored
		}
	}
	if ds == nil {
		ds = s.sessions.Datasets().Electoral
	}

	rows := ds.Flatten()
	if rows == nil {
		rows = []electoral.Row{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"electoral_data": rows})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	data, err := s.opts.Reload(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.sessions.SetDatasets(data)
	writeJSON(w, http.StatusOK, map[string]any{
		"electoral": data.Electoral != nil,
		"boundary":  data.Boundary != nil,
		"notices":   data.Notices,
	})
}

type sessionBody struct {
	ID   string       `json:"id"`
	View browser.View `json:"view"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	view := sess.View()
	w.Header().Set("X-Refresh-Token", view.Render.Token.String())
	writeJSON(w, http.StatusCreated, sessionBody{ID: sess.ID, View: view})
}

// session resolves {id} or writes a 404.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*browser.Session, bool) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	view := sess.View()
	w.Header().Set("X-Refresh-Token", view.Render.Token.String())
	writeJSON(w, http.StatusOK, sessionBody{ID: sess.ID, View: view})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var ev filter.Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event body")
		return
	}

	view, err := sess.Apply(ev)
	if err != nil {
		body := errorBody{Error: err.Error()}
		var verr *filter.ValidationError
		if errors.As(err, &verr) {
			body.Problems = verr.Problems
		}
		writeJSON(w, http.StatusUnprocessableEntity, body)
		return
	}
	w.Header().Set("X-Refresh-Token", view.Render.Token.String())
	writeJSON(w, http.StatusOK, sessionBody{ID: sess.ID, View: view})
}

func (s *Server) handleGeometry(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	view := sess.View()
	data, err := view.Render.GeoJSON(sess.NameProperty())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode geometry")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("X-Refresh-Token", view.Render.Token.String())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type planBody struct {
	*allocator.Plan
	Allocated int64 `json:"allocated"`
	Remaining int64 `json:"remaining"`
}

func planView(p *allocator.Plan) planBody {
	return planBody{Plan: p, Allocated: p.Allocated(), Remaining: p.Remaining()}
}

func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	req := struct {
		Budget *int64 `json:"budget"`
	}{}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid allocation body")
		return
	}
	budget := s.opts.DefaultBudget
	if req.Budget != nil {
		budget = *req.Budget
	}

	p, err := sess.Allocate(budget)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, planView(p))
}

func (s *Server) handleGetAllocation(w http.ResponseWriter, r *http.Request) {
	p, ok := s.plan(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, planView(p))
}

type planUpdate struct {
	Budget  *int64            `json:"budget"`
	Toggle  []int             `json:"toggle"`
	Amounts map[string]int64  `json:"amounts"`
	Status  map[string]string `json:"status"`
}

func (s *Server) handleUpdateAllocation(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var upd planUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid allocation update")
		return
	}

	p, err := sess.UpdatePlan(func(p *allocator.Plan) error {
		if upd.Budget != nil {
			if err := p.SetBudget(*upd.Budget); err != nil {
				return err
			}
		}
		for _, id := range upd.Toggle {
			if err := p.Toggle(id); err != nil {
				return err
			}
		}
		for key, amount := range upd.Amounts {
			id, err := strconv.Atoi(key)
			if err != nil {
				return errors.New("allocation row ids must be integers")
			}
			if err := p.SetAmount(id, amount); err != nil {
				return err
			}
		}
		for key, status := range upd.Status {
			id, err := strconv.Atoi(key)
			if err != nil {
				return errors.New("allocation row ids must be integers")
			}
			if err := p.SetStatus(id, status); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, planView(p))
}

// plan resolves the session's plan or writes a 404.
func (s *Server) plan(w http.ResponseWriter, r *http.Request) (*allocator.Plan, bool) {
	sess, ok := s.session(w, r)
	if !ok {
		return nil, false
	}
	p, ok := sess.Plan()
	if !ok {
		writeError(w, http.StatusNotFound, "no allocation plan for session")
		return nil, false
	}
	return p, true
}

func (s *Server) handleAllocationCSV(w http.ResponseWriter, r *http.Request) {
	p, ok := s.plan(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="allocated_budget.csv"`)
	if err := allocator.WriteCSV(w, p); err != nil {
		s.log.Warn("csv export failed", zap.Error(err))
	}
}

func (s *Server) handleAllocationXLSX(w http.ResponseWriter, r *http.Request) {
	p, ok := s.plan(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="allocated_budget.xlsx"`)
	if err := allocator.WriteXLSX(w, p); err != nil {
		s.log.Warn("xlsx export failed", zap.Error(err))
	}
}
