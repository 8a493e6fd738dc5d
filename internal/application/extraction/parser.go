package extraction

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/jhoicas/facturas-api/internal/domain"
)

// Parser de respuestas del modelo. La respuesta puede venir envuelta en un
// bloque de código markdown, rodeada de prosa o con artefactos de formato;
// aquí se recupera el objeto JSON embebido. El parseo es puro y determinista:
// la misma entrada produce siempre la misma salida o el mismo tipo de fallo.

var (
	// reBloqueJSON captura el interior de un bloque ```json ... ``` (o ``` ... ```).
	reBloqueJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	// reComaFinal elimina comas colgantes antes de } o ].
	reComaFinal = regexp.MustCompile(`,\s*([}\]])`)
	// reEspacios colapsa espacios repetidos.
	reEspacios = regexp.MustCompile(`[ ]{2,}`)
)

// ExtractJSONObject recupera el objeto JSON de un texto libre del modelo.
// Estrategia ordenada (gana la primera coincidencia):
//  1. Bloque de código marcado como JSON.
//  2. Del primer '{' al último '}' del texto completo.
//  3. Sin candidato → ParseError{ErrNoJSONFound}.
//  4. Parseo estricto del candidato.
//  5. Si falla, una pasada de limpieza (comas colgantes, saltos de línea,
//     espacios repetidos) y un único reintento.
//  6. Si vuelve a fallar → ParseError{ErrMalformedJSON} con el candidato y
//     el error subyacente para diagnóstico.
//
// Devuelve los bytes del candidato que parseó correctamente.
func ExtractJSONObject(raw string) ([]byte, error) {
	candidate := findCandidate(raw)
	if candidate == "" {
		return nil, &domain.ParseError{Kind: domain.ErrNoJSONFound, RawText: raw}
	}

	if err := strictParse(candidate); err == nil {
		return []byte(candidate), nil
	}

	cleaned := cleanupJSON(candidate)
	if err := strictParse(cleaned); err != nil {
		return nil, &domain.ParseError{
			Kind:      domain.ErrMalformedJSON,
			RawText:   raw,
			Candidate: candidate,
			Err:       err,
		}
	}
	return []byte(cleaned), nil
}

// findCandidate localiza el texto candidato a objeto JSON.
func findCandidate(raw string) string {
	if m := reBloqueJSON.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return strings.TrimSpace(raw[start : end+1])
}

// cleanupJSON pasada de reparación leniente. Idempotente: aplicarla dos veces
// produce el mismo resultado que una.
func cleanupJSON(s string) string {
	s = reComaFinal.ReplaceAllString(s, "$1")
	s = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ").Replace(s)
	s = reEspacios.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func strictParse(s string) error {
	var v map[string]any
	return json.Unmarshal([]byte(s), &v)
}
