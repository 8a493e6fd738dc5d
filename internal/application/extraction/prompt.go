package extraction

// Prompts de extracción. El contrato de salida del modelo es solo
// "prompt-enforced": el parser (parser.go) es quien absorbe las
// desviaciones de formato.

// instruccionesAsistente instrucciones para la sesión de extracción de PDFs.
const instruccionesAsistente = `Eres un experto en extracción de datos de facturas. Extrae TODOS los campos posibles de la factura y devuélvelos en formato JSON estructurado.

Campos a extraer:
- numeroFactura: número de la factura
- fecha: fecha de emisión (formato YYYY-MM-DD)
- fechaVencimiento: fecha de vencimiento (formato YYYY-MM-DD)
- proveedor: {nombre, rfc, nit, direccion, telefono}
- cliente: {nombre, rfc, nit, direccion}
- items: [{descripcion, cantidad, precioUnitario, total}]
- subtotal: subtotal antes de impuestos
- iva: monto del IVA
- total: monto total
- moneda: código de moneda (MXN, USD, etc.)
- formaPago: forma de pago
- metodoPago: método de pago
- usoCFDI: uso del CFDI (si aplica)
- observaciones: notas adicionales

Devuelve SOLO el JSON sin texto adicional.`

// mensajeUsuarioPDF mensaje que acompaña al archivo adjunto en la sesión.
const mensajeUsuarioPDF = `Extrae todos los datos de esta factura en formato JSON.`

// promptVision prompt de una sola llamada para imágenes.
const promptVision = `Extrae TODOS los datos de esta factura y devuélvelos en formato JSON con esta estructura:
{
  "numeroFactura": "string",
  "fecha": "YYYY-MM-DD",
  "fechaVencimiento": "YYYY-MM-DD",
  "proveedor": {"nombre": "string", "rfc": "string", "direccion": "string", "telefono": "string"},
  "cliente": {"nombre": "string", "rfc": "string", "direccion": "string"},
  "items": [{"descripcion": "string", "cantidad": number, "precioUnitario": number, "total": number}],
  "subtotal": number,
  "iva": number,
  "total": number,
  "moneda": "string",
  "formaPago": "string",
  "metodoPago": "string",
  "usoCFDI": "string",
  "observaciones": "string"
}

Devuelve SOLO el JSON sin texto adicional. Si algún campo no está disponible, omítelo o usa null.`

// InstruccionesAsistente expone las instrucciones al adaptador del colaborador.
func InstruccionesAsistente() string { return instruccionesAsistente }

// MensajeUsuarioPDF expone el mensaje de usuario de la sesión PDF.
func MensajeUsuarioPDF() string { return mensajeUsuarioPDF }

// PromptVision expone el prompt de visión para imágenes.
func PromptVision() string { return promptVision }
