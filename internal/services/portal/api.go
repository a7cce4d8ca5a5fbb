package portal

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/fgeck/gorenew/internal/models"
)

// Portal endpoints, relative to the base URL.
const (
	loginPath      = "/login"
	dashboardPath  = "/dashboard"
	serversPath    = "/api/servers"
	contractPage   = "/contracts/%s"
	informationAPI = "/api/servers/%s/information"
	contractAPI    = "/api/renewal/contracts/%s"
	renewAPI       = "/api/renewal/contracts/%s/renew-free"
)

const maxRawPreview = 1000

// flexID accepts both string and numeric identifiers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id is neither string nor number: %s", string(data))
	}
	*f = flexID(n.String())
	return nil
}

type serverListPayload struct {
	Servers []struct {
		ID     flexID `json:"id"`
		Name   string `json:"name"`
		Status string `json:"status"`
	} `json:"servers"`
}

// parseServers decodes the server listing.
func parseServers(body []byte) ([]models.ServerHandle, error) {
	var payload serverListPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: server list: %w", models.ErrMalformedResponse, err)
	}

	servers := make([]models.ServerHandle, 0, len(payload.Servers))
	for _, s := range payload.Servers {
		servers = append(servers, models.ServerHandle{
			ID:     string(s.ID),
			Name:   s.Name,
			Status: models.ParseServerStatus(s.Status),
		})
	}
	return servers, nil
}

// parseStatus decodes the server information payload.
func parseStatus(body []byte) (models.ServerStatus, error) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return models.StatusUnknown, fmt.Errorf("%w: server information: %w", models.ErrMalformedResponse, err)
	}
	return models.ParseServerStatus(payload.Status), nil
}

type renewalInfoPayload struct {
	NextRenewalDate string `json:"nextRenewalDate"`
}

// parseRenewalInfo decodes the renewal contract. The renewal info may sit
// under "contract" or at the top level.
func parseRenewalInfo(body []byte) (*models.RenewalInfo, error) {
	var payload struct {
		Contract struct {
			RenewalInfo *renewalInfoPayload `json:"renewalInfo"`
		} `json:"contract"`
		RenewalInfo *renewalInfoPayload `json:"renewalInfo"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: renewal contract: %w", models.ErrMalformedResponse, err)
	}

	info := &models.RenewalInfo{}
	switch {
	case payload.Contract.RenewalInfo != nil:
		info.NextRenewalDate = payload.Contract.RenewalInfo.NextRenewalDate
	case payload.RenewalInfo != nil:
		info.NextRenewalDate = payload.RenewalInfo.NextRenewalDate
	}
	return info, nil
}

// parseRenewResponse classifies a renew-free response body. It never fails:
// an unparseable body is reported through Structured=false.
func parseRenewResponse(status int, text string) *models.RenewResponse {
	resp := &models.RenewResponse{
		HTTPStatus: status,
		Raw:        preview(text, maxRawPreview),
	}

	var payload struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Details struct {
			NextRenewalDate string `json:"nextRenewalDate"`
		} `json:"details"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		resp.ParseError = err.Error()
		return resp
	}

	resp.Structured = true
	resp.Success = payload.Success
	resp.Message = payload.Message
	resp.NextRenewalDate = payload.Details.NextRenewalDate
	return resp
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// endpoint joins the base URL with a path, formatting in the escaped id.
func endpoint(baseURL, pathFmt string, args ...string) string {
	escaped := make([]any, len(args))
	for i, a := range args {
		escaped[i] = url.PathEscape(a)
	}
	return strings.TrimRight(baseURL, "/") + fmt.Sprintf(pathFmt, escaped...)
}
