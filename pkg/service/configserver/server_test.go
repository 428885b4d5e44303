package configserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/m-mizutani/docchat/pkg/adapter"
	"github.com/m-mizutani/docchat/pkg/model"
	"github.com/m-mizutani/docchat/pkg/repository"
	"github.com/m-mizutani/docchat/pkg/service/configserver"
	"github.com/m-mizutani/gt"
)

type brokenRepository struct{}

func (brokenRepository) GetConfig(ctx context.Context) (*model.AppConfig, error) {
	return nil, errors.New("disk full")
}

func (brokenRepository) PutConfig(ctx context.Context, cfg *model.AppConfig) error {
	return errors.New("disk full")
}

func doRequest(t *testing.T, srv *configserver.Server, method, body string) (int, string) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, configserver.ConfigPath, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.App().Test(req)
	if err != nil {
		t.Fatal("request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	gt.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestGetEmptyConfig(t *testing.T) {
	srv := configserver.New(repository.NewMemory())

	status, body := doRequest(t, srv, http.MethodGet, "")
	gt.Equal(t, status, http.StatusOK)
	gt.Equal(t, body, "{}")
}

func TestPostThenGet(t *testing.T) {
	repo := repository.NewMemory()
	srv := configserver.New(repo)

	status, body := doRequest(t, srv, http.MethodPost, `{"ragStoreName":"fileSearchStores/abc"}`)
	gt.Equal(t, status, http.StatusOK)
	gt.Equal(t, body, `{"ragStoreName":"fileSearchStores/abc"}`)

	status, body = doRequest(t, srv, http.MethodGet, "")
	gt.Equal(t, status, http.StatusOK)

	var cfg model.AppConfig
	gt.NoError(t, json.Unmarshal([]byte(body), &cfg))
	gt.Equal(t, cfg.RAGStoreName, model.StoreID("fileSearchStores/abc"))
}

func TestPostEmptyBodyClearsConfig(t *testing.T) {
	repo := repository.NewMemory()
	gt.NoError(t, repo.PutConfig(context.Background(), &model.AppConfig{RAGStoreName: "fileSearchStores/abc"}))
	srv := configserver.New(repo)

	status, body := doRequest(t, srv, http.MethodPost, "")
	gt.Equal(t, status, http.StatusOK)
	gt.Equal(t, body, "{}")

	cfg, err := repo.GetConfig(context.Background())
	gt.NoError(t, err)
	gt.Equal(t, cfg.RAGStoreName, model.StoreID(""))
}

func TestPostInvalidJSON(t *testing.T) {
	srv := configserver.New(repository.NewMemory())

	status, body := doRequest(t, srv, http.MethodPost, "{not json")
	gt.Equal(t, status, http.StatusBadRequest)
	gt.Equal(t, body, `{"error":"Invalid JSON payload."}`)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := configserver.New(repository.NewMemory())

	for _, method := range []string{http.MethodPut, http.MethodDelete, http.MethodPatch} {
		status, body := doRequest(t, srv, method, "")
		gt.Equal(t, status, http.StatusMethodNotAllowed)
		gt.Equal(t, body, `{"error":"Method not allowed."}`)
	}
}

func TestRepositoryFailure(t *testing.T) {
	srv := configserver.New(brokenRepository{})

	status, _ := doRequest(t, srv, http.MethodGet, "")
	gt.Equal(t, status, http.StatusInternalServerError)

	status, _ = doRequest(t, srv, http.MethodPost, `{}`)
	gt.Equal(t, status, http.StatusInternalServerError)
}

func TestConfigClientAgainstServer(t *testing.T) {
	srv := configserver.New(repository.NewMemory())
	ts := httptest.NewServer(adaptor.FiberApp(srv.App()))
	defer ts.Close()

	ctx := context.Background()
	client := adapter.NewConfigClient(ts.URL + configserver.ConfigPath)

	cfg, err := client.GetConfig(ctx)
	gt.NoError(t, err)
	gt.Equal(t, cfg.RAGStoreName, model.StoreID(""))

	gt.NoError(t, client.PutConfig(ctx, &model.AppConfig{RAGStoreName: "fileSearchStores/xyz"}))

	cfg, err = client.GetConfig(ctx)
	gt.NoError(t, err)
	gt.Equal(t, cfg.RAGStoreName, model.StoreID("fileSearchStores/xyz"))
}
