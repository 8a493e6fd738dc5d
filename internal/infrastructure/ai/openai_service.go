package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/jhoicas/facturas-api/internal/application/extraction"
	"github.com/jhoicas/facturas-api/internal/application/ports"
	"github.com/jhoicas/facturas-api/internal/domain"
	"github.com/jhoicas/facturas-api/pkg/logger"
)

// Verificar en tiempo de compilación que OpenAIService implementa DocumentExtractor.
var _ ports.DocumentExtractor = (*OpenAIService)(nil)

const (
	openaiBaseURL       = "https://api.openai.com/v1"
	openaiAssistantsTag = "assistants=v2"

	// Los PDFs van por la Assistants API (el modelo necesita file_search
	// para leer el documento); las imágenes van directas por chat
	// completions con visión.
	pollInterval = 2 * time.Second
	maxPollTime  = 120 * time.Second
)

// OpenAIService adaptador que implementa DocumentExtractor usando la API
// REST de OpenAI. Usa net/http de la librería estándar; no requiere el SDK
// oficial. Los recursos remotos creados por documento (archivo, asistente,
// hilo) se desmontan SIEMPRE al terminar, con o sin éxito: el desmontaje
// fallido se registra pero nunca se propaga al llamante.
type OpenAIService struct {
	apiKey     string
	model      string
	httpClient *http.Client
	log        *logger.Logger
}

// NewOpenAIService construye el adaptador. model suele ser "gpt-4o".
// Si apiKey está vacío las llamadas devuelven error descriptivo en lugar de panic.
func NewOpenAIService(apiKey, model string, log *logger.Logger) *OpenAIService {
	if log == nil {
		log = logger.Nop()
	}
	return &OpenAIService{
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		log: log,
	}
}

// ── Estructuras internas del protocolo OpenAI ─────────────────────────────────

type openaiError struct {
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type fileUploadResponse struct {
	ID string `json:"id"`
}

type assistantResponse struct {
	ID string `json:"id"`
}

type threadResponse struct {
	ID string `json:"id"`
}

type runResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

type messagesListResponse struct {
	Data []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ── Implementación del puerto ─────────────────────────────────────────────────

// ExtractFromPDF sube el PDF, monta un asistente efímero con acceso al
// archivo, ejecuta la extracción y devuelve el texto crudo del modelo.
func (s *OpenAIService) ExtractFromPDF(ctx context.Context, content []byte, fileName string) (string, error) {
	if s.apiKey == "" {
		return "", fmt.Errorf("%w: OPENAI_API_KEY no configurado", domain.ErrUpstream)
	}

	fileID, err := s.uploadFile(ctx, content, fileName)
	if err != nil {
		return "", err
	}
	defer s.teardown("file", fileID, openaiBaseURL+"/files/"+fileID)

	assistantID, err := s.createAssistant(ctx)
	if err != nil {
		return "", err
	}
	defer s.teardown("assistant", assistantID, openaiBaseURL+"/assistants/"+assistantID)

	threadID, err := s.createThread(ctx, fileID)
	if err != nil {
		return "", err
	}
	defer s.teardown("thread", threadID, openaiBaseURL+"/threads/"+threadID)

	runID, err := s.createRun(ctx, threadID, assistantID)
	if err != nil {
		return "", err
	}

	if err := s.waitForRun(ctx, threadID, runID); err != nil {
		return "", err
	}

	return s.readAssistantReply(ctx, threadID)
}

// ExtractFromImage envía la imagen inline como data URL base64 por chat
// completions con visión y devuelve el texto crudo del modelo.
func (s *OpenAIService) ExtractFromImage(ctx context.Context, content []byte, mimeType string) (string, error) {
	if s.apiKey == "" {
		return "", fmt.Errorf("%w: OPENAI_API_KEY no configurado", domain.ErrUpstream)
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(content))

	payload := map[string]any{
		"model": s.model,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": extraction.PromptVision()},
					{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
				},
			},
		},
		"max_tokens": 2000,
	}

	var out chatCompletionResponse
	if err := s.doJSON(ctx, http.MethodPost, openaiBaseURL+"/chat/completions", payload, &out, false); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: respuesta de visión vacía", domain.ErrUpstreamIncomplete)
	}
	return out.Choices[0].Message.Content, nil
}

// ── Pasos del flujo de asistentes ─────────────────────────────────────────────

func (s *OpenAIService) uploadFile(ctx context.Context, content []byte, fileName string) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("purpose", "assistants"); err != nil {
		return "", fmt.Errorf("AI: preparar multipart: %w", err)
	}
	fw, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return "", fmt.Errorf("AI: preparar multipart: %w", err)
	}
	if _, err := fw.Write(content); err != nil {
		return "", fmt.Errorf("AI: preparar multipart: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("AI: preparar multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openaiBaseURL+"/files", &buf)
	if err != nil {
		return "", fmt.Errorf("AI: crear HTTP request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out fileUploadResponse
	if err := s.execute(req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (s *OpenAIService) createAssistant(ctx context.Context) (string, error) {
	payload := map[string]any{
		"name":         "Extractor de Facturas",
		"instructions": extraction.InstruccionesAsistente(),
		"model":        s.model,
		"tools":        []map[string]string{{"type": "file_search"}},
	}
	var out assistantResponse
	if err := s.doJSON(ctx, http.MethodPost, openaiBaseURL+"/assistants", payload, &out, true); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (s *OpenAIService) createThread(ctx context.Context, fileID string) (string, error) {
	payload := map[string]any{
		"messages": []map[string]any{
			{
				"role":    "user",
				"content": extraction.MensajeUsuarioPDF(),
				"attachments": []map[string]any{
					{
						"file_id": fileID,
						"tools":   []map[string]string{{"type": "file_search"}},
					},
				},
			},
		},
	}
	var out threadResponse
	if err := s.doJSON(ctx, http.MethodPost, openaiBaseURL+"/threads", payload, &out, true); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (s *OpenAIService) createRun(ctx context.Context, threadID, assistantID string) (string, error) {
	payload := map[string]any{"assistant_id": assistantID}
	var out runResponse
	url := fmt.Sprintf("%s/threads/%s/runs", openaiBaseURL, threadID)
	if err := s.doJSON(ctx, http.MethodPost, url, payload, &out, true); err != nil {
		return "", err
	}
	return out.ID, nil
}

// waitForRun sondea el estado del run hasta su estado terminal. Cualquier
// terminal distinto de "completed" (failed, cancelled, expired,
// requires_action) se trata como extracción incompleta.
func (s *OpenAIService) waitForRun(ctx context.Context, threadID, runID string) error {
	deadline := time.Now().Add(maxPollTime)
	url := fmt.Sprintf("%s/threads/%s/runs/%s", openaiBaseURL, threadID, runID)

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("AI: cancelado durante el sondeo: %w", err)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: run %s sin estado terminal tras %s", domain.ErrUpstreamIncomplete, runID, maxPollTime)
		}

		var run runResponse
		if err := s.doJSON(ctx, http.MethodGet, url, nil, &run, true); err != nil {
			return err
		}

		switch run.Status {
		case "completed":
			return nil
		case "queued", "in_progress", "cancelling":
			// seguir sondeando
		default:
			msg := run.Status
			if run.LastError != nil {
				msg = fmt.Sprintf("%s (%s: %s)", run.Status, run.LastError.Code, run.LastError.Message)
			}
			return fmt.Errorf("%w: run terminó en %s", domain.ErrUpstreamIncomplete, msg)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("AI: cancelado durante el sondeo: %w", ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

func (s *OpenAIService) readAssistantReply(ctx context.Context, threadID string) (string, error) {
	url := fmt.Sprintf("%s/threads/%s/messages?order=desc&limit=10", openaiBaseURL, threadID)
	var out messagesListResponse
	if err := s.doJSON(ctx, http.MethodGet, url, nil, &out, true); err != nil {
		return "", err
	}
	for _, m := range out.Data {
		if m.Role != "assistant" {
			continue
		}
		for _, c := range m.Content {
			if c.Type == "text" && c.Text.Value != "" {
				return c.Text.Value, nil
			}
		}
	}
	return "", fmt.Errorf("%w: el asistente no produjo respuesta de texto", domain.ErrUpstreamIncomplete)
}

// teardown elimina un recurso remoto con un contexto propio: el desmontaje
// debe ejecutarse aunque el contexto de la petición ya esté cancelado.
func (s *OpenAIService) teardown(kind, id, url string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		s.log.Warn().Str("kind", kind).Str("id", id).Err(err).Msg("desmontaje OpenAI")
		return
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("OpenAI-Beta", openaiAssistantsTag)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.log.Warn().Str("kind", kind).Str("id", id).Err(err).Msg("desmontaje OpenAI")
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		s.log.Warn().Str("kind", kind).Str("id", id).Int("status", resp.StatusCode).Msg("desmontaje OpenAI")
	}
}

// ── Transporte ────────────────────────────────────────────────────────────────

// doJSON envía una petición JSON y deserializa la respuesta en out.
func (s *OpenAIService) doJSON(ctx context.Context, method, url string, payload any, out any, assistants bool) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("AI: serializar request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("AI: crear HTTP request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if assistants {
		req.Header.Set("OpenAI-Beta", openaiAssistantsTag)
	}

	return s.execute(req, out)
}

func (s *OpenAIService) execute(req *http.Request, out any) error {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return fmt.Errorf("AI: timeout o cancelación: %w", req.Context().Err())
		}
		return fmt.Errorf("%w: llamada HTTP fallida: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: leer respuesta: %v", domain.ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp openaiError
		if jsonErr := json.Unmarshal(rawBody, &errResp); jsonErr == nil && errResp.Error != nil {
			return fmt.Errorf("%w: OpenAI (%s): %s", domain.ErrUpstream, errResp.Error.Type, errResp.Error.Message)
		}
		return fmt.Errorf("%w: OpenAI HTTP %d: %s", domain.ErrUpstream, resp.StatusCode, string(rawBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rawBody, out); err != nil {
		return fmt.Errorf("%w: deserializar respuesta OpenAI: %v", domain.ErrUpstream, err)
	}
	return nil
}
