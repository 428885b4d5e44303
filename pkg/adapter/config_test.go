package adapter_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/docchat/pkg/adapter"
	"github.com/m-mizutani/docchat/pkg/model"
	"github.com/m-mizutani/gt"
)

func TestConfigClientRoundTrip(t *testing.T) {
	var stored []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(stored)
		case http.MethodPost:
			body, err := io.ReadAll(r.Body)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			stored = body
			_, _ = w.Write(body)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	client := adapter.NewConfigClient(srv.URL + "/api/config")

	// Nothing persisted yet: empty body is an empty config
	cfg, err := client.GetConfig(ctx)
	gt.NoError(t, err)
	gt.Equal(t, cfg.RAGStoreName, model.StoreID(""))

	gt.NoError(t, client.PutConfig(ctx, &model.AppConfig{RAGStoreName: "fileSearchStores/abc"}))

	var raw map[string]any
	gt.NoError(t, json.Unmarshal(stored, &raw))
	gt.Equal(t, raw["ragStoreName"], any("fileSearchStores/abc"))

	cfg, err = client.GetConfig(ctx)
	gt.NoError(t, err)
	gt.Equal(t, cfg.RAGStoreName, model.StoreID("fileSearchStores/abc"))
}

func TestConfigClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx := context.Background()
	client := adapter.NewConfigClient(srv.URL)

	_, err := client.GetConfig(ctx)
	gt.Error(t, err)

	err = client.PutConfig(ctx, &model.AppConfig{RAGStoreName: "fileSearchStores/abc"})
	gt.Error(t, err)
}

func TestConfigClientInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	_, err := adapter.NewConfigClient(srv.URL).GetConfig(context.Background())
	gt.Error(t, err)
}
