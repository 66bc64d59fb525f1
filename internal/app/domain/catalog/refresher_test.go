package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/YongWoo-8933/Cafejari-Server/internal/app/models"
	"github.com/YongWoo-8933/Cafejari-Server/internal/pkg/config"
)

type MockCatalogRepo struct {
	areas   []models.CongestionArea
	updates map[uuid.UUID]models.CongestionLevel
}

func (m *MockCatalogRepo) GetFloor(ctx context.Context, floorID uuid.UUID) (*models.CafeFloor, error) {
	return nil, models.ErrFloorNotFound
}

func (m *MockCatalogRepo) CongestionLevelsForCafe(ctx context.Context, cafeID uuid.UUID) ([]models.CongestionLevel, error) {
	return nil, nil
}

func (m *MockCatalogRepo) ListCongestionAreas(ctx context.Context) ([]models.CongestionArea, error) {
	return m.areas, nil
}

func (m *MockCatalogRepo) UpdateAreaCongestion(ctx context.Context, areaID uuid.UUID, level models.CongestionLevel) error {
	m.updates[areaID] = level
	return nil
}

func TestCongestionRefresher_UpdatesAreas(t *testing.T) {
	levelsByArea := map[string]string{
		"홍대입구역": "약간 붐빔",
		"강남역":   "붐빔",
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var level string
		for name, l := range levelsByArea {
			if r.URL.Path == "/test-key/json/citydata_ppltn/1/5/"+name {
				level = l
			}
		}
		if level == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `{"SeoulRtd.citydata_ppltn":[{"AREA_CONGEST_LVL":%q,"AREA_NM":"x"}]}`, level)
	}))
	defer srv.Close()

	hongdae := models.CongestionArea{ID: uuid.New(), Name: "홍대입구역"}
	gangnam := models.CongestionArea{ID: uuid.New(), Name: "강남역"}
	repo := &MockCatalogRepo{
		areas:   []models.CongestionArea{hongdae, gangnam},
		updates: map[uuid.UUID]models.CongestionLevel{},
	}

	refresher := NewCongestionRefresher(repo, config.CongestionConfig{
		APIBase: srv.URL, APIKey: "test-key", Timeout: time.Second,
	}, zap.NewNop())

	require.NoError(t, refresher.Run(context.Background()))
	assert.Equal(t, models.CongestionBusy, repo.updates[hongdae.ID])
	assert.Equal(t, models.CongestionVeryBusy, repo.updates[gangnam.ID])
}

func TestCongestionRefresher_SkipsFailedAndUnknownAreas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/test-key/json/citydata_ppltn/1/5/성수동":
			fmt.Fprint(w, `{"SeoulRtd.citydata_ppltn":[{"AREA_CONGEST_LVL":"보통"}]}`)
		case r.URL.Path == "/test-key/json/citydata_ppltn/1/5/이상한곳":
			fmt.Fprint(w, `{"SeoulRtd.citydata_ppltn":[{"AREA_CONGEST_LVL":"알 수 없음"}]}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	ok := models.CongestionArea{ID: uuid.New(), Name: "성수동"}
	unknown := models.CongestionArea{ID: uuid.New(), Name: "이상한곳"}
	failing := models.CongestionArea{ID: uuid.New(), Name: "장애지역"}
	repo := &MockCatalogRepo{
		areas:   []models.CongestionArea{failing, unknown, ok},
		updates: map[uuid.UUID]models.CongestionLevel{},
	}

	refresher := NewCongestionRefresher(repo, config.CongestionConfig{
		APIBase: srv.URL, APIKey: "test-key", Timeout: time.Second,
	}, zap.NewNop())

	require.NoError(t, refresher.Run(context.Background()), "per-area failures never fail the pass")
	assert.Len(t, repo.updates, 1)
	assert.Equal(t, models.CongestionNormal, repo.updates[ok.ID])
}
