package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/kpal-project/kpal/pkg/models"
)

// createPeripheralRequest is the body of POST /peripherals.
type createPeripheralRequest struct {
	LibraryID uint64                  `json:"library_id"`
	Name      string                  `json:"name"`
	PreInit   map[string]models.Value `json:"pre_init,omitempty"`
}

// updateAttributeRequest is the body of PATCH /peripherals/{id}/attributes/{attrID}.
type updateAttributeRequest struct {
	Value models.Value `json:"value"`
}

// handleCreatePeripheral handles POST /peripherals.
//
//	@Summary		Create a peripheral
//	@Description	Instantiates a fresh plugin instance for the given library and starts its executor.
//	@Tags			peripherals
//	@Accept			json
//	@Produce		json
//	@Param			body	body		createPeripheralRequest	true	"Peripheral parameters"
//	@Success		201		{object}	models.Peripheral
//	@Failure		404		{object}	models.APIProblem
//	@Failure		422		{object}	models.APIProblem
//	@Router			/peripherals [post]
func (s *Server) handleCreatePeripheral(w http.ResponseWriter, r *http.Request) {
	var req createPeripheralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body", r.URL.Path)
		return
	}

	preInit, err := parsePreInit(req.PreInit)
	if err != nil {
		BadRequest(w, err.Error(), r.URL.Path)
		return
	}

	p, err := s.core.CreatePeripheral(r.Context(), req.LibraryID, req.Name, preInit)
	if err != nil {
		WriteError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func parsePreInit(in map[string]models.Value) (map[uint64]models.Value, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[uint64]models.Value, len(in))
	for k, v := range in {
		id, err := strconv.ParseUint(k, 10, 64)
		if err != nil {
			return nil, err
		}
		out[id] = v
	}
	return out, nil
}

// handleListLibraries handles GET /libraries.
//
//	@Summary	List libraries
//	@Tags		libraries
//	@Produce	json
//	@Success	200	{array}	models.Library
//	@Router		/libraries [get]
func (s *Server) handleListLibraries(w http.ResponseWriter, r *http.Request) {
	libs, err := s.core.ReadLibraries(r.Context())
	if err != nil {
		WriteError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, libs)
}

// handleGetLibrary handles GET /libraries/{id}.
//
//	@Summary	Read one library
//	@Tags		libraries
//	@Produce	json
//	@Param		id	path		int	true	"Library ID"
//	@Success	200	{object}	models.Library
//	@Failure	404	{object}	models.APIProblem
//	@Router		/libraries/{id} [get]
func (s *Server) handleGetLibrary(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint64(r, "id")
	if err != nil {
		BadRequest(w, "invalid library id", r.URL.Path)
		return
	}
	lib, err := s.core.ReadLibrary(r.Context(), id)
	if err != nil {
		WriteError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, lib)
}

// handleListPeripherals handles GET /peripherals.
//
//	@Summary	List peripherals
//	@Tags		peripherals
//	@Produce	json
//	@Success	200	{array}	models.Peripheral
//	@Router		/peripherals [get]
func (s *Server) handleListPeripherals(w http.ResponseWriter, r *http.Request) {
	ps, err := s.core.ReadPeripherals(r.Context())
	if err != nil {
		WriteError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// handleGetPeripheral handles GET /peripherals/{id}.
//
//	@Summary	Read one peripheral
//	@Tags		peripherals
//	@Produce	json
//	@Param		id	path		int	true	"Peripheral ID"
//	@Success	200	{object}	models.Peripheral
//	@Failure	404	{object}	models.APIProblem
//	@Router		/peripherals/{id} [get]
func (s *Server) handleGetPeripheral(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint64(r, "id")
	if err != nil {
		BadRequest(w, "invalid peripheral id", r.URL.Path)
		return
	}
	p, err := s.core.ReadPeripheral(r.Context(), id)
	if err != nil {
		WriteError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleListAttributes handles GET /peripherals/{id}/attributes.
//
//	@Summary	List a peripheral's attributes
//	@Tags		peripherals
//	@Produce	json
//	@Param		id	path		int	true	"Peripheral ID"
//	@Success	200	{array}	models.Attribute
//	@Failure	404	{object}	models.APIProblem
//	@Router		/peripherals/{id}/attributes [get]
func (s *Server) handleListAttributes(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint64(r, "id")
	if err != nil {
		BadRequest(w, "invalid peripheral id", r.URL.Path)
		return
	}
	attrs, err := s.core.ReadPeripheralAttributes(r.Context(), id)
	if err != nil {
		WriteError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, attrs)
}

// handleGetAttribute handles GET /peripherals/{id}/attributes/{attrID}.
//
//	@Summary	Read one attribute
//	@Tags		peripherals
//	@Produce	json
//	@Param		id		path		int	true	"Peripheral ID"
//	@Param		attrID	path		int	true	"Attribute ID"
//	@Success	200		{object}	models.Attribute
//	@Failure	404		{object}	models.APIProblem
//	@Router		/peripherals/{id}/attributes/{attrID} [get]
func (s *Server) handleGetAttribute(w http.ResponseWriter, r *http.Request) {
	id, attrID, err := pathPeripheralAttribute(r)
	if err != nil {
		BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	attr, err := s.core.ReadPeripheralAttribute(r.Context(), id, attrID)
	if err != nil {
		WriteError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, attr)
}

// handlePatchAttribute handles PATCH /peripherals/{id}/attributes/{attrID}.
//
//	@Summary	Update one attribute
//	@Tags		peripherals
//	@Accept		json
//	@Produce	json
//	@Param		id		path		int						true	"Peripheral ID"
//	@Param		attrID	path		int						true	"Attribute ID"
//	@Param		body	body		updateAttributeRequest	true	"New value"
//	@Success	200		{object}	models.Attribute
//	@Failure	404		{object}	models.APIProblem
//	@Failure	422		{object}	models.APIProblem
//	@Router		/peripherals/{id}/attributes/{attrID} [patch]
func (s *Server) handlePatchAttribute(w http.ResponseWriter, r *http.Request) {
	id, attrID, err := pathPeripheralAttribute(r)
	if err != nil {
		BadRequest(w, err.Error(), r.URL.Path)
		return
	}

	var req updateAttributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body", r.URL.Path)
		return
	}

	attr, err := s.core.UpdatePeripheralAttribute(r.Context(), id, attrID, req.Value)
	if err != nil {
		WriteError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, attr)
}

func pathUint64(r *http.Request, key string) (uint64, error) {
	return strconv.ParseUint(r.PathValue(key), 10, 64)
}

func pathPeripheralAttribute(r *http.Request) (id, attrID uint64, err error) {
	id, err = pathUint64(r, "id")
	if err != nil {
		return 0, 0, err
	}
	attrID, err = pathUint64(r, "attrID")
	if err != nil {
		return 0, 0, err
	}
	return id, attrID, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
