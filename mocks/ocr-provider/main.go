// Command ocr-provider is a stand-in for the external OCR service, for local
// development and e2e runs. It answers every extraction with a fixed text,
// overridable with MOCK_OCR_TEXT.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
)

func main() {
	addr := os.Getenv("MOCK_OCR_ADDR")
	if addr == "" {
		addr = ":9090"
	}
	text := os.Getenv("MOCK_OCR_TEXT")
	if text == "" {
		text = "PRECINTO TDM38816"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/extract", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Image string `json:"image"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Image == "" {
			http.Error(w, "missing image", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"text": text})
	})

	log.Printf("mock ocr provider listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}
