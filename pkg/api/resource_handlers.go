package api

import (
	"net/http"

	"github.com/platinummonkey/haven/pkg/auth"
	"github.com/platinummonkey/haven/pkg/httputil"
	"github.com/platinummonkey/haven/pkg/middleware"
)

// Property is a listing summary
type Property struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	City    string `json:"city"`
	Price   int64  `json:"price"`
	AgentID string `json:"agentId,omitempty"`
}

// featuredProperties is served until listings are backed by a store
var featuredProperties = []Property{
	{ID: "p-1001", Title: "Harbour view loft", City: "Lisbon", Price: 425000},
	{ID: "p-1002", Title: "Garden terrace house", City: "Porto", Price: 310000},
	{ID: "p-1003", Title: "Studio near the old town", City: "Coimbra", Price: 149000},
}

// viewer is the public identity shown to personalised listing responses
type viewer struct {
	ID   string    `json:"id"`
	Name string    `json:"name,omitempty"`
	Role auth.Role `json:"role"`
}

// listProperties handles GET /api/properties
func (s *Server) listProperties(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", len(featuredProperties))
	if err != nil || limit < 0 {
		httputil.WriteBadRequest(w, "limit must be a non-negative integer")
		return
	}
	if limit > len(featuredProperties) {
		limit = len(featuredProperties)
	}

	data := map[string]interface{}{
		"properties": featuredProperties[:limit],
	}
	if account := middleware.GetAccount(r); account != nil {
		data["viewer"] = viewer{ID: account.ID, Name: account.Name, Role: account.Role}
	}
	httputil.WriteSuccess(w, "", data)
}

// transferProperty handles PUT /api/properties/{propertyId}/owner
func (s *Server) transferProperty(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID string `json:"ownerId"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.OwnerID == "" {
		httputil.WriteValidationError(w, "ownerId is required", nil)
		return
	}
	httputil.WriteSuccess(w, "Ownership updated", map[string]interface{}{
		"propertyId": httputil.PathVar(r, "propertyId"),
		"ownerId":    req.OwnerID,
		"updatedBy":  middleware.GetAccount(r).ID,
	})
}

// updateUser handles PUT /api/users/{id}
func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id := httputil.PathVar(r, "id")
	account, err := s.opts.Store.FindByID(r.Context(), id)
	if err != nil {
		httputil.WriteErrorMessage(w, http.StatusNotFound, "User not found")
		return
	}
	httputil.WriteSuccess(w, "User updated", map[string]interface{}{
		"user":      account,
		"updatedBy": middleware.GetAccount(r).ID,
	})
}

// agentDashboard handles GET /api/agent/dashboard
func (s *Server) agentDashboard(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r)
	listings := []Property{}
	for _, p := range featuredProperties {
		if account.Role == auth.RoleAdmin || p.AgentID == account.ID {
			listings = append(listings, p)
		}
	}
	httputil.WriteSuccess(w, "", map[string]interface{}{
		"agent":    viewer{ID: account.ID, Name: account.Name, Role: account.Role},
		"listings": listings,
	})
}

// adminDashboard handles GET /api/admin/dashboard
func (s *Server) adminDashboard(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, "", map[string]interface{}{
		"admin":         middleware.GetAccount(r).ID,
		"propertyCount": len(featuredProperties),
	})
}

// reports handles GET /api/reports
func (s *Server) reports(w http.ResponseWriter, r *http.Request) {
	byCity := make(map[string]int)
	for _, p := range featuredProperties {
		byCity[p.City]++
	}
	httputil.WriteSuccess(w, "", map[string]interface{}{"listingsByCity": byCity})
}

// integrationPing handles GET /api/integrations/ping
func (s *Server) integrationPing(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, "pong", nil)
}
