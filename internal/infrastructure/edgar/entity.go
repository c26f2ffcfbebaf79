package edgar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"FilingScanner/internal/domain"
	"FilingScanner/internal/infrastructure/resilience"
	"FilingScanner/internal/ports"
)

const (
	DefaultDataURL   = "https://data.sec.gov"
	submissionsLimit = 4 << 20
)

type submissions struct {
	CIK                             string   `json:"cik"`
	Name                            string   `json:"name"`
	Tickers                         []string `json:"tickers"`
	StateOfIncorporation            string   `json:"stateOfIncorporation"`
	StateOfIncorporationDescription string   `json:"stateOfIncorporationDescription"`
	Addresses                       struct {
		Business struct {
			StateOrCountry            string `json:"stateOrCountry"`
			StateOrCountryDescription string `json:"stateOrCountryDescription"`
		} `json:"business"`
	} `json:"addresses"`
}

var errMalformed = errors.New("edgar: malformed submissions payload")

func classifySubmissions(err error) resilience.ErrorClassification {
	if errors.Is(err, errMalformed) {
		return resilience.ErrorClassification{}
	}
	return Classify(err)
}

// EntityResolver reads the per-registrant submissions record.
type EntityResolver struct {
	client   *Client
	executor *resilience.Executor
	baseURL  string
	logger   *slog.Logger
}

var _ ports.EntityResolver = (*EntityResolver)(nil)

func NewEntityResolver(client *Client, executor *resilience.Executor, dataURL string, logger *slog.Logger) *EntityResolver {
	if strings.TrimSpace(dataURL) == "" {
		dataURL = DefaultDataURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig(), logger)
	}
	return &EntityResolver{
		client:   client,
		executor: executor,
		baseURL:  strings.TrimRight(dataURL, "/"),
		logger:   logger,
	}
}

// Resolve never fails: an unreachable registry yields an unknown entity and
// the gate rejects it downstream.
func (r *EntityResolver) Resolve(ctx context.Context, registrantID string) domain.EntityInfo {
	cik := padCIK(registrantID)
	if cik == "" {
		return domain.UnknownEntity(registrantID)
	}

	url := fmt.Sprintf("%s/submissions/CIK%s.json", r.baseURL, cik)
	var payload submissions
	err := r.executor.Execute(ctx, "edgar.submissions", func(ctx context.Context) error {
		resp, err := r.client.Get(ctx, url, submissionsLimit)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			return fmt.Errorf("%w: %v", errMalformed, err)
		}
		return nil
	}, classifySubmissions)
	if err != nil {
		r.logger.Warn("entity lookup failed", "registrant", cik, "error", err)
		return domain.UnknownEntity(registrantID)
	}

	return entityFromSubmissions(registrantID, payload)
}

func entityFromSubmissions(registrantID string, p submissions) domain.EntityInfo {
	info := domain.EntityInfo{
		RegistrantID:      registrantID,
		DisplayName:       strings.TrimSpace(p.Name),
		IncorporationCode: strings.ToUpper(strings.TrimSpace(p.StateOfIncorporation)),
		Incorporation:     JurisdictionName(p.StateOfIncorporation, p.StateOfIncorporationDescription),
		OperationCode:     strings.ToUpper(strings.TrimSpace(p.Addresses.Business.StateOrCountry)),
		Operation:         JurisdictionName(p.Addresses.Business.StateOrCountry, p.Addresses.Business.StateOrCountryDescription),
	}
	for _, t := range p.Tickers {
		if t = strings.TrimSpace(t); t != "" {
			info.Ticker = strings.ToUpper(t)
			break
		}
	}
	return info
}

func padCIK(id string) string {
	id = strings.TrimLeft(strings.TrimSpace(id), "0")
	if id == "" {
		return ""
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return strings.Repeat("0", max(0, 10-len(id))) + id
}
