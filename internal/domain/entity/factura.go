package entity

import "time"

// Factura es el registro estructurado extraído de un documento.
// Todos los campos de negocio son opcionales: el modelo solo devuelve
// lo que encuentra en el documento. Los tags JSON siguen el contrato
// que el prompt le pide al modelo (camelCase en español).
type Factura struct {
	// El id lo asigna el almacén de documentos; el adaptador de
	// persistencia lo gestiona fuera de la entidad.
	ID               string     `json:"_id,omitempty" bson:"-"`
	NumeroFactura    string     `json:"numeroFactura,omitempty" bson:"numeroFactura,omitempty"`
	Fecha            string     `json:"fecha,omitempty" bson:"fecha,omitempty"`
	FechaVencimiento string     `json:"fechaVencimiento,omitempty" bson:"fechaVencimiento,omitempty"`
	Proveedor        *Proveedor `json:"proveedor,omitempty" bson:"proveedor,omitempty"`
	Cliente          *Cliente   `json:"cliente,omitempty" bson:"cliente,omitempty"`
	Items            []Item     `json:"items,omitempty" bson:"items,omitempty"`
	Subtotal         *float64   `json:"subtotal,omitempty" bson:"subtotal,omitempty"`
	IVA              *float64   `json:"iva,omitempty" bson:"iva,omitempty"`
	Total            *float64   `json:"total,omitempty" bson:"total,omitempty"`
	Moneda           string     `json:"moneda,omitempty" bson:"moneda,omitempty"`
	FormaPago        string     `json:"formaPago,omitempty" bson:"formaPago,omitempty"`
	MetodoPago       string     `json:"metodoPago,omitempty" bson:"metodoPago,omitempty"`
	UsoCFDI          string     `json:"usoCFDI,omitempty" bson:"usoCFDI,omitempty"`
	Observaciones    string     `json:"observaciones,omitempty" bson:"observaciones,omitempty"`
	Metadata         *Metadata  `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt        time.Time  `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	UpdatedAt        time.Time  `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// Proveedor emisor de la factura.
type Proveedor struct {
	Nombre    string `json:"nombre,omitempty" bson:"nombre,omitempty"`
	RFC       string `json:"rfc,omitempty" bson:"rfc,omitempty"`
	NIT       string `json:"nit,omitempty" bson:"nit,omitempty"`
	Direccion string `json:"direccion,omitempty" bson:"direccion,omitempty"`
	Telefono  string `json:"telefono,omitempty" bson:"telefono,omitempty"`
}

// Cliente receptor de la factura.
type Cliente struct {
	Nombre    string `json:"nombre,omitempty" bson:"nombre,omitempty"`
	RFC       string `json:"rfc,omitempty" bson:"rfc,omitempty"`
	NIT       string `json:"nit,omitempty" bson:"nit,omitempty"`
	Direccion string `json:"direccion,omitempty" bson:"direccion,omitempty"`
}

// Item una línea de producto o servicio.
type Item struct {
	Descripcion    string   `json:"descripcion,omitempty" bson:"descripcion,omitempty"`
	Cantidad       *float64 `json:"cantidad,omitempty" bson:"cantidad,omitempty"`
	PrecioUnitario *float64 `json:"precioUnitario,omitempty" bson:"precioUnitario,omitempty"`
	Total          *float64 `json:"total,omitempty" bson:"total,omitempty"`
}

// Metadata datos de procesamiento y validación adjuntos al registro.
type Metadata struct {
	FileName    string `json:"fileName" bson:"fileName"`
	FileSize    int64  `json:"fileSize,omitempty" bson:"fileSize,omitempty"`
	MimeType    string `json:"mimeType,omitempty" bson:"mimeType,omitempty"`
	ProcessedAt string `json:"processedAt,omitempty" bson:"processedAt,omitempty"`
	Model       string `json:"model,omitempty" bson:"model,omitempty"`
	ValidatedAt string `json:"validatedAt,omitempty" bson:"validatedAt,omitempty"`
	ValidatedBy string `json:"validatedBy,omitempty" bson:"validatedBy,omitempty"`
	WasModified bool   `json:"wasModified,omitempty" bson:"wasModified,omitempty"`
	S3Key       string `json:"s3Key,omitempty" bson:"s3Key,omitempty"`
	S3URL       string `json:"s3Url,omitempty" bson:"s3Url,omitempty"`
}

// Clone devuelve una copia profunda de la factura. Es la base del overlay
// de edición: el usuario muta la copia y el original queda intacto hasta
// que confirma el guardado.
func (f *Factura) Clone() *Factura {
	if f == nil {
		return nil
	}
	c := *f
	if f.Proveedor != nil {
		p := *f.Proveedor
		c.Proveedor = &p
	}
	if f.Cliente != nil {
		cl := *f.Cliente
		c.Cliente = &cl
	}
	if f.Items != nil {
		c.Items = make([]Item, len(f.Items))
		for i, it := range f.Items {
			c.Items[i] = it
			c.Items[i].Cantidad = cloneFloat(it.Cantidad)
			c.Items[i].PrecioUnitario = cloneFloat(it.PrecioUnitario)
			c.Items[i].Total = cloneFloat(it.Total)
		}
	}
	c.Subtotal = cloneFloat(f.Subtotal)
	c.IVA = cloneFloat(f.IVA)
	c.Total = cloneFloat(f.Total)
	if f.Metadata != nil {
		m := *f.Metadata
		c.Metadata = &m
	}
	return &c
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
