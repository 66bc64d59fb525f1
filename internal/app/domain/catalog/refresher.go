package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/YongWoo-8933/Cafejari-Server/internal/app/models"
	"github.com/YongWoo-8933/Cafejari-Server/internal/pkg/config"
)

// CongestionRefresher polls the Seoul city-data API for each congestion area
// and stores the current crowd level. Area lookups that fail are logged and
// skipped; the remaining areas still refresh.
type CongestionRefresher struct {
	logger  *zap.Logger
	repo    Repository
	client  *http.Client
	apiBase string
	apiKey  string
}

func NewCongestionRefresher(repo Repository, cfg config.CongestionConfig, logger *zap.Logger) *CongestionRefresher {
	return &CongestionRefresher{
		logger:  logger,
		repo:    repo,
		client:  &http.Client{Timeout: cfg.Timeout},
		apiBase: cfg.APIBase,
		apiKey:  cfg.APIKey,
	}
}

// Name identifies the refresher on the job scheduler.
func (r *CongestionRefresher) Name() string { return "congestion_refresher" }

func (r *CongestionRefresher) Run(ctx context.Context) error {
	ctx, span := otel.Tracer("CongestionRefresher").Start(ctx, "Run")
	defer span.End()

	areas, err := r.repo.ListCongestionAreas(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list areas")
		return err
	}

	updated := 0
	for _, area := range areas {
		level, err := r.fetchLevel(ctx, area.Name)
		if err != nil {
			r.logger.Warn("Skipping congestion area after fetch failure",
				zap.String("area", area.Name), zap.Any("error", err))
			continue
		}
		if models.CongestionIndex(level) < 0 {
			r.logger.Warn("City-data returned an unknown congestion level",
				zap.String("area", area.Name), zap.String("level", string(level)))
			continue
		}
		if err := r.repo.UpdateAreaCongestion(ctx, area.ID, level); err != nil {
			r.logger.Warn("Failed to store congestion level",
				zap.String("area", area.Name), zap.Any("error", err))
			continue
		}
		updated++
	}

	span.SetAttributes(attribute.Int("congestion.areas", len(areas)), attribute.Int("congestion.updated", updated))
	span.SetStatus(codes.Ok, "Refresh complete")
	return nil
}

type cityDataResponse struct {
	CityDataPpltn []struct {
		AreaCongestLevel string `json:"AREA_CONGEST_LVL"`
	} `json:"SeoulRtd.citydata_ppltn"`
}

func (r *CongestionRefresher) fetchLevel(ctx context.Context, areaName string) (models.CongestionLevel, error) {
	endpoint := fmt.Sprintf("%s/%s/json/citydata_ppltn/1/5/%s",
		r.apiBase, r.apiKey, url.PathEscape(areaName))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("building city-data request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching city-data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("city-data returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading city-data response: %w", err)
	}

	var parsed cityDataResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding city-data response: %w", err)
	}
	if len(parsed.CityDataPpltn) == 0 {
		return "", fmt.Errorf("city-data response carries no population block")
	}

	return models.CongestionLevel(parsed.CityDataPpltn[0].AreaCongestLevel), nil
}
