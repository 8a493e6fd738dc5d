package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jhoicas/facturas-api/internal/domain"
	"github.com/jhoicas/facturas-api/internal/domain/entity"
	"github.com/jhoicas/facturas-api/internal/domain/repository"
)

var _ repository.FacturaRepository = (*FacturaRepo)(nil)

// FacturaRepo implementación del puerto FacturaRepository sobre MongoDB.
// El _id del documento es el ObjectId generado por el driver; hacia el
// dominio viaja siempre como string hexadecimal.
type FacturaRepo struct {
	col *mongo.Collection
}

// NewFacturaRepository construye el adaptador sobre la colección "facturas".
func NewFacturaRepository(db *mongo.Database) *FacturaRepo {
	return &FacturaRepo{col: db.Collection("facturas")}
}

// facturaDoc forma persistida: la entidad más el _id del documento.
type facturaDoc struct {
	OID primitive.ObjectID `bson:"_id,omitempty"`
	entity.Factura `bson:",inline"`
}

// FindByNumero busca por número de factura exacto. Devuelve ErrNotFound si
// no existe.
func (r *FacturaRepo) FindByNumero(ctx context.Context, numero string) (*entity.Factura, error) {
	var doc facturaDoc
	err := r.col.FindOne(ctx, bson.M{"numeroFactura": numero}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("buscar factura por número: %w", err)
	}
	return doc.toEntity(), nil
}

// Insert persiste una factura nueva y devuelve el id asignado.
func (r *FacturaRepo) Insert(ctx context.Context, f *entity.Factura) (string, error) {
	res, err := r.col.InsertOne(ctx, f)
	if err != nil {
		return "", fmt.Errorf("insertar factura: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("insertar factura: _id inesperado %T", res.InsertedID)
	}
	id := oid.Hex()
	f.ID = id
	return id, nil
}

// FindByID recupera una factura por su id hexadecimal.
func (r *FacturaRepo) FindByID(ctx context.Context, id string) (*entity.Factura, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: id de factura inválido", domain.ErrInvalidInput)
	}
	var doc facturaDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("buscar factura: %w", err)
	}
	return doc.toEntity(), nil
}

// Update aplica un $set parcial sobre el documento.
func (r *FacturaRepo) Update(ctx context.Context, id string, patch map[string]any) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: id de factura inválido", domain.ErrInvalidInput)
	}
	set := bson.M{}
	for k, v := range patch {
		set[k] = v
	}
	set["updatedAt"] = time.Now()
	res, err := r.col.UpdateByID(ctx, oid, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("actualizar factura: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete elimina el documento.
func (r *FacturaRepo) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: id de factura inválido", domain.ErrInvalidInput)
	}
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("eliminar factura: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List devuelve una página ordenada por fecha de validación descendente,
// con filtro opcional por número de factura (coincidencia parcial,
// insensible a mayúsculas).
func (r *FacturaRepo) List(ctx context.Context, filter repository.FacturaFilter) (*repository.FacturaPage, error) {
	query := bson.M{}
	if filter.Numero != "" {
		query["numeroFactura"] = bson.M{
			"$regex":   regexp.QuoteMeta(filter.Numero),
			"$options": "i",
		}
	}

	total, err := r.col.CountDocuments(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("contar facturas: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "metadata.validatedAt", Value: -1}}).
		SetSkip(int64(filter.Skip)).
		SetLimit(int64(filter.Limit))

	cur, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("listar facturas: %w", err)
	}
	defer cur.Close(ctx)

	var docs []facturaDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decodificar facturas: %w", err)
	}

	page := &repository.FacturaPage{
		Data:  make([]*entity.Factura, 0, len(docs)),
		Total: total,
	}
	for i := range docs {
		page.Data = append(page.Data, docs[i].toEntity())
	}
	return page, nil
}

// Stats agregados del panel de administración en una sola pasada de
// agregación con $facet.
func (r *FacturaRepo) Stats(ctx context.Context) (*repository.FacturaStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$facet", Value: bson.M{
			"totales": bson.A{
				bson.M{"$group": bson.M{
					"_id":   nil,
					"count": bson.M{"$sum": 1},
					"monto": bson.M{"$sum": bson.M{"$ifNull": bson.A{"$total", 0}}},
				}},
			},
			"porMoneda": bson.A{
				bson.M{"$group": bson.M{
					"_id":   bson.M{"$ifNull": bson.A{"$moneda", "desconocida"}},
					"monto": bson.M{"$sum": bson.M{"$ifNull": bson.A{"$total", 0}}},
				}},
			},
			"porMes": bson.A{
				bson.M{"$group": bson.M{
					"_id":   bson.M{"$substrBytes": bson.A{bson.M{"$ifNull": bson.A{"$fecha", ""}}, 0, 7}},
					"count": bson.M{"$sum": 1},
				}},
			},
			"ultima": bson.A{
				bson.M{"$sort": bson.M{"metadata.validatedAt": -1}},
				bson.M{"$limit": 1},
				bson.M{"$project": bson.M{"validatedAt": "$metadata.validatedAt"}},
			},
		}}},
	}

	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("agregar estadísticas: %w", err)
	}
	defer cur.Close(ctx)

	var raw []struct {
		Totales []struct {
			Count int64   `bson:"count"`
			Monto float64 `bson:"monto"`
		} `bson:"totales"`
		PorMoneda []struct {
			ID    string  `bson:"_id"`
			Monto float64 `bson:"monto"`
		} `bson:"porMoneda"`
		PorMes []struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
		} `bson:"porMes"`
		Ultima []struct {
			// validatedAt se persiste como string RFC3339 (ordenable lexicográficamente)
			ValidatedAt string `bson:"validatedAt"`
		} `bson:"ultima"`
	}
	if err := cur.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("decodificar estadísticas: %w", err)
	}

	stats := &repository.FacturaStats{
		PorMoneda: map[string]float64{},
		PorMes:    map[string]int64{},
	}
	if len(raw) == 0 {
		return stats, nil
	}
	r0 := raw[0]
	if len(r0.Totales) > 0 {
		stats.TotalFacturas = r0.Totales[0].Count
		stats.MontoTotal = r0.Totales[0].Monto
	}
	for _, m := range r0.PorMoneda {
		stats.PorMoneda[m.ID] = m.Monto
	}
	for _, m := range r0.PorMes {
		if m.ID != "" {
			stats.PorMes[m.ID] = m.Count
		}
	}
	if len(r0.Ultima) > 0 {
		stats.UltimaValidada = r0.Ultima[0].ValidatedAt
	}
	return stats, nil
}

func (d *facturaDoc) toEntity() *entity.Factura {
	f := d.Factura
	f.ID = d.OID.Hex()
	return &f
}
