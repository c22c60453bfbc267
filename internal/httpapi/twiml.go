package httpapi

import (
	"encoding/xml"
	"net/http"
)

// messagingResponse is the minimal TwiML envelope the messaging
// transport expects back from the webhook.
type messagingResponse struct {
	XMLName  xml.Name `xml:"Response"`
	Messages []string `xml:"Message"`
}

func respondTwiML(w http.ResponseWriter, messages ...string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(messagingResponse{Messages: messages})
}
