package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/BerylCAtieno/milo-api/internal/models"
)

const patientsCollection = "patients"

type firestoreRepository struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreRepository stores each patient as one document with its labs
// held in an ordered array field.
func NewFirestoreRepository(client *firestore.Client) PatientRepository {
	return &firestoreRepository{
		client:     client,
		collection: patientsCollection,
	}
}

// NewFirestoreClient creates a Firestore client for projectID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

type patientDoc struct {
	Name      string     `firestore:"name"`
	DOB       *time.Time `firestore:"dob"`
	Gender    *string    `firestore:"gender"`
	TeamID    *string    `firestore:"teamId"`
	Labs      []labDoc   `firestore:"labs"`
	CreatedAt time.Time  `firestore:"createdAt"`
}

type labDoc struct {
	ID             string             `firestore:"id"`
	Date           string             `firestore:"date"`
	Values         map[string]float64 `firestore:"values"`
	Recommendation string             `firestore:"recommendation"`
	FileKey        *string            `firestore:"fileKey"`
	RawText        string             `firestore:"rawText"`
	IsPrimary      bool               `firestore:"isPrimaryLabs"`
	CreatedAt      time.Time          `firestore:"createdAt"`
}

func (r *firestoreRepository) doc(id string) *firestore.DocumentRef {
	return r.client.Collection(r.collection).Doc(id)
}

func (r *firestoreRepository) Create(ctx context.Context, patient *models.Patient) error {
	doc := patientDoc{
		Name:      patient.Name,
		DOB:       patient.DOB,
		Gender:    patient.Gender,
		TeamID:    patient.TeamID,
		Labs:      []labDoc{},
		CreatedAt: patient.CreatedAt,
	}
	for i := range patient.Labs {
		doc.Labs = append(doc.Labs, toLabDoc(&patient.Labs[i]))
	}

	if _, err := r.doc(patient.ID).Create(ctx, doc); err != nil {
		return fmt.Errorf("failed to create patient document: %w", err)
	}
	return nil
}

func (r *firestoreRepository) GetByID(ctx context.Context, id string) (*models.Patient, error) {
	snap, err := r.doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient document: %w", err)
	}

	return fromSnapshot(snap)
}

func (r *firestoreRepository) List(ctx context.Context, filter models.PatientFilter) ([]models.Patient, error) {
	query := r.client.Collection(r.collection).Query
	if filter.TeamID != "" {
		query = query.Where("teamId", "==", filter.TeamID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	needle := strings.ToLower(filter.Query)
	patients := []models.Patient{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate patients: %w", err)
		}

		p, err := fromSnapshot(snap)
		if err != nil {
			return nil, err
		}
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		p.Labs = []models.LabEntry{}
		patients = append(patients, *p)
	}

	sort.SliceStable(patients, func(i, j int) bool {
		return patients[i].Name < patients[j].Name
	})

	return patients, nil
}

func (r *firestoreRepository) Delete(ctx context.Context, id string) error {
	_, err := r.doc(id).Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete patient document: %w", err)
	}
	return nil
}

// AppendLabEntry reads the labs array inside a transaction so a retried
// append of the same entry ID is skipped, then adds it with ArrayUnion.
func (r *firestoreRepository) AppendLabEntry(ctx context.Context, patientID string, entry *models.LabEntry) (bool, error) {
	ref := r.doc(patientID)
	appended := false

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		appended = false

		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var doc patientDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		for _, l := range doc.Labs {
			if l.ID == entry.ID {
				return nil
			}
		}

		appended = true
		return tx.Update(ref, []firestore.Update{
			{Path: "labs", Value: firestore.ArrayUnion(toLabDoc(entry))},
		})
	})
	if errors.Is(err, ErrNotFound) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to append lab entry: %w", err)
	}

	entry.PatientID = patientID
	return appended, nil
}

func fromSnapshot(snap *firestore.DocumentSnapshot) (*models.Patient, error) {
	var doc patientDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode patient %s: %w", snap.Ref.ID, err)
	}

	p := &models.Patient{
		ID:        snap.Ref.ID,
		Name:      doc.Name,
		DOB:       doc.DOB,
		Gender:    doc.Gender,
		TeamID:    doc.TeamID,
		Labs:      make([]models.LabEntry, 0, len(doc.Labs)),
		CreatedAt: doc.CreatedAt,
	}
	for _, l := range doc.Labs {
		p.Labs = append(p.Labs, models.LabEntry{
			ID:             l.ID,
			PatientID:      p.ID,
			Date:           l.Date,
			Values:         readValues(l.Values),
			Recommendation: l.Recommendation,
			FileKey:        l.FileKey,
			RawText:        l.RawText,
			IsPrimary:      l.IsPrimary,
			CreatedAt:      l.CreatedAt,
		})
	}
	return p, nil
}

func toLabDoc(e *models.LabEntry) labDoc {
	return labDoc{
		ID:             e.ID,
		Date:           e.Date,
		Values:         e.Values,
		Recommendation: e.Recommendation,
		FileKey:        e.FileKey,
		RawText:        e.RawText,
		IsPrimary:      e.IsPrimary,
		CreatedAt:      e.CreatedAt,
	}
}
