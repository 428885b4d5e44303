package model

// AppConfig is the configuration object kept by the session persistence endpoint
type AppConfig struct {
	RAGStoreName StoreID `json:"ragStoreName,omitempty" firestore:"ragStoreName,omitempty"`
}
