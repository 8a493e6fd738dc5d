package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/facturas-api/internal/domain"
	"github.com/jhoicas/facturas-api/internal/domain/entity"
)

// Esquema de la factura extraída. Se valida la FORMA antes de persistir;
// la consistencia numérica se verifica aparte (checkConsistencia) porque
// JSON Schema no expresa aritmética con tolerancia.
const facturaSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "numeroFactura":    {"type": "string"},
    "fecha":            {"type": "string"},
    "fechaVencimiento": {"type": "string"},
    "proveedor": {
      "type": "object",
      "properties": {
        "nombre":    {"type": "string"},
        "rfc":       {"type": "string"},
        "nit":       {"type": "string"},
        "direccion": {"type": "string"},
        "telefono":  {"type": "string"}
      }
    },
    "cliente": {
      "type": "object",
      "properties": {
        "nombre":    {"type": "string"},
        "rfc":       {"type": "string"},
        "nit":       {"type": "string"},
        "direccion": {"type": "string"}
      }
    },
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "descripcion":    {"type": "string"},
          "cantidad":       {"type": "number"},
          "precioUnitario": {"type": "number"},
          "total":          {"type": "number"}
        }
      }
    },
    "subtotal":      {"type": "number"},
    "iva":           {"type": "number"},
    "total":         {"type": "number"},
    "moneda":        {"type": "string"},
    "formaPago":     {"type": "string"},
    "metodoPago":    {"type": "string"},
    "usoCFDI":       {"type": "string"},
    "observaciones": {"type": "string"},
    "metadata": {
      "type": "object",
      "properties": {
        "fileName": {"type": "string", "minLength": 1}
      },
      "required": ["fileName"]
    }
  },
  "required": ["metadata"]
}`

var compiledSchema = jsonschema.MustCompileString("factura.schema.json", facturaSchema)

// epsilon tolerancia para las comprobaciones de consistencia monetaria.
var epsilon = decimal.NewFromFloat(0.01)

// checkFactura valida forma y consistencia numérica del registro.
// Cualquier violación devuelve ErrInvalidInput envuelto con el detalle.
func checkFactura(f *entity.Factura) error {
	if f == nil {
		return fmt.Errorf("%w: factura vacía", domain.ErrInvalidInput)
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("serializar factura: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("deserializar factura: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return checkConsistencia(f)
}

// checkConsistencia verifica total ≈ subtotal + iva y total de línea ≈
// cantidad × precioUnitario, con tolerancia de 0.01. Solo se comprueba
// cuando todos los operandos están presentes: los campos son opcionales.
func checkConsistencia(f *entity.Factura) error {
	var problemas []string

	if f.Subtotal != nil && f.IVA != nil && f.Total != nil {
		subtotal := decimal.NewFromFloat(*f.Subtotal)
		iva := decimal.NewFromFloat(*f.IVA)
		total := decimal.NewFromFloat(*f.Total)
		if total.Sub(subtotal.Add(iva)).Abs().GreaterThan(epsilon) {
			problemas = append(problemas, fmt.Sprintf(
				"total %s no coincide con subtotal %s + iva %s", total, subtotal, iva))
		}
	}

	for i, it := range f.Items {
		if it.Cantidad == nil || it.PrecioUnitario == nil || it.Total == nil {
			continue
		}
		cantidad := decimal.NewFromFloat(*it.Cantidad)
		precio := decimal.NewFromFloat(*it.PrecioUnitario)
		total := decimal.NewFromFloat(*it.Total)
		if total.Sub(cantidad.Mul(precio)).Abs().GreaterThan(epsilon) {
			problemas = append(problemas, fmt.Sprintf(
				"item %d: total %s no coincide con %s × %s", i, total, cantidad, precio))
		}
	}

	if len(problemas) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(problemas, "; "))
	}
	return nil
}
