package formsvc

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dalemusser/formhub/internal/app/policy/formpolicy"
	"github.com/dalemusser/formhub/internal/app/system/apperr"
	"github.com/dalemusser/formhub/internal/app/system/export"
	"github.com/dalemusser/formhub/internal/app/system/registry"
	"github.com/dalemusser/formhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// authorizedBinding loads the form, checks intent for caller and resolves
// the requested (or current) version.
func (s *Service) authorizedBinding(ctx context.Context, caller, formID primitive.ObjectID, version *int, intent formpolicy.Intent) (*registry.Binding, error) {
	f, p, err := s.formContext(ctx, formID)
	if err != nil {
		return nil, err
	}
	if err := formpolicy.Authorize(caller, p, f, intent); err != nil {
		return nil, err
	}
	return s.resolve(f, version)
}

// CreateRecord validates values against the version's schema and stores
// them. version nil means the form's current version.
func (s *Service) CreateRecord(ctx context.Context, caller, formID primitive.ObjectID, version *int, values map[string]any) (models.Record, error) {
	rec, err := s.createRecord(ctx, caller, formID, version, values)
	s.metrics.RecordOp("create", err)
	return rec, err
}

func (s *Service) createRecord(ctx context.Context, caller, formID primitive.ObjectID, version *int, values map[string]any) (models.Record, error) {
	b, err := s.authorizedBinding(ctx, caller, formID, version, formpolicy.Write)
	if err != nil {
		return models.Record{}, err
	}
	return s.records.Create(ctx, b, values)
}

// GetRecord returns one record of the version.
func (s *Service) GetRecord(ctx context.Context, caller, formID primitive.ObjectID, version *int, recordID string) (models.Record, error) {
	rec, err := s.getRecord(ctx, caller, formID, version, recordID)
	s.metrics.RecordOp("get", err)
	return rec, err
}

func (s *Service) getRecord(ctx context.Context, caller, formID primitive.ObjectID, version *int, recordID string) (models.Record, error) {
	b, err := s.authorizedBinding(ctx, caller, formID, version, formpolicy.Read)
	if err != nil {
		return models.Record{}, err
	}
	return s.records.Get(ctx, b, recordID)
}

// ListRecords returns every record of the version in storage order. Only
// the project owner may list, whatever the form's access mode.
func (s *Service) ListRecords(ctx context.Context, caller, formID primitive.ObjectID, version *int) ([]models.Record, error) {
	recs, err := s.listRecords(ctx, caller, formID, version)
	s.metrics.RecordOp("list", err)
	return recs, err
}

func (s *Service) listRecords(ctx context.Context, caller, formID primitive.ObjectID, version *int) ([]models.Record, error) {
	_, b, err := s.listBinding(ctx, caller, formID, version)
	if err != nil {
		return nil, err
	}
	return s.records.Collect(ctx, b)
}

func (s *Service) listBinding(ctx context.Context, caller, formID primitive.ObjectID, version *int) (models.Form, *registry.Binding, error) {
	f, p, err := s.formContext(ctx, formID)
	if err != nil {
		return models.Form{}, nil, err
	}
	if err := formpolicy.AuthorizeList(caller, p); err != nil {
		return models.Form{}, nil, err
	}
	b, err := s.resolve(f, version)
	if err != nil {
		return models.Form{}, nil, err
	}
	return f, b, nil
}

// UpdateRecord applies patch to the mutable fields of a record.
func (s *Service) UpdateRecord(ctx context.Context, caller, formID primitive.ObjectID, version *int, recordID string, patch map[string]any) (models.Record, error) {
	rec, err := s.updateRecord(ctx, caller, formID, version, recordID, patch)
	s.metrics.RecordOp("update", err)
	return rec, err
}

func (s *Service) updateRecord(ctx context.Context, caller, formID primitive.ObjectID, version *int, recordID string, patch map[string]any) (models.Record, error) {
	b, err := s.authorizedBinding(ctx, caller, formID, version, formpolicy.Write)
	if err != nil {
		return models.Record{}, err
	}
	return s.records.Update(ctx, b, recordID, patch)
}

// DeleteRecord removes a record and returns it.
func (s *Service) DeleteRecord(ctx context.Context, caller, formID primitive.ObjectID, version *int, recordID string) (models.Record, error) {
	rec, err := s.deleteRecord(ctx, caller, formID, version, recordID)
	s.metrics.RecordOp("delete", err)
	return rec, err
}

func (s *Service) deleteRecord(ctx context.Context, caller, formID primitive.ObjectID, version *int, recordID string) (models.Record, error) {
	b, err := s.authorizedBinding(ctx, caller, formID, version, formpolicy.Write)
	if err != nil {
		return models.Record{}, err
	}
	return s.records.Delete(ctx, b, recordID)
}

// Export is an encoded record set ready to be served as a download.
type Export struct {
	FileName    string
	ContentType string
	Records     int
	Body        []byte
}

// ExportRecords encodes every record of the version in format. The format
// is checked before any storage access. Owner only, like ListRecords.
func (s *Service) ExportRecords(ctx context.Context, caller, formID primitive.ObjectID, version *int, format string) (Export, error) {
	out, err := s.exportRecords(ctx, caller, formID, version, format)
	s.metrics.Export(format, err)
	if err == nil {
		s.log.Info("records exported",
			zap.String("form_id", formID.Hex()),
			zap.String("format", format),
			zap.Int("records", out.Records))
	}
	return out, err
}

func (s *Service) exportRecords(ctx context.Context, caller, formID primitive.ObjectID, version *int, format string) (Export, error) {
	fm, err := export.ParseFormat(format)
	if err != nil {
		return Export{}, err
	}
	f, b, err := s.listBinding(ctx, caller, formID, version)
	if err != nil {
		return Export{}, err
	}

	if s.maxExport > 0 {
		n, err := s.records.Count(ctx, b)
		if err != nil {
			return Export{}, err
		}
		if n > int64(s.maxExport) {
			return Export{}, &apperr.ExportError{
				Format: string(fm),
				Err:    fmt.Errorf("%d records exceed the export limit of %d", n, s.maxExport),
			}
		}
	}

	recs, err := s.records.Collect(ctx, b)
	if err != nil {
		return Export{}, err
	}
	var buf bytes.Buffer
	if err := export.Encode(&buf, fm, b.Schema.Names(), recs); err != nil {
		return Export{}, err
	}
	return Export{
		FileName:    export.FileName(f.Name, b.Version, fm),
		ContentType: export.ContentType(fm),
		Records:     len(recs),
		Body:        buf.Bytes(),
	}, nil
}
