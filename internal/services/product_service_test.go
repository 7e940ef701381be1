package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
	"gorm.io/gorm"

	"github.com/javajoker/storefront-backend/internal/models"
	"github.com/javajoker/storefront-backend/internal/testutil"
)

type fakeAssetStore struct {
	mu        sync.Mutex
	next      int
	uploads   []string
	deletes   []string
	uploadErr error
}

func (f *fakeAssetStore) Upload(_ context.Context, name, _ string, _ []byte, _ bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.next++
	address := fmt.Sprintf("https://assets.test/products/%d-%s", f.next, name)
	f.uploads = append(f.uploads, address)
	return address, nil
}

func (f *fakeAssetStore) Delete(_ context.Context, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, address)
	return nil
}

func (f *fakeAssetStore) deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletes...)
}

type recordingInvalidator struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recordingInvalidator) Revalidate(views ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, views)
}

func (r *recordingInvalidator) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func lampSubmission(tags string) FormSubmission {
	return FormSubmission{
		Fields: map[string]string{
			FieldName:         "Lamp",
			FieldDescription:  "A lamp",
			FieldPriceInCents: "2500",
			FieldAvailable:    "true",
			FieldTags:         tags,
		},
		Files: map[string]*FileUpload{FieldImage: jpegUpload()},
	}
}

func withoutImage(sub FormSubmission) FormSubmission {
	sub.Files = map[string]*FileUpload{}
	return sub
}

type ProductServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	assets  *fakeAssetStore
	views   *recordingInvalidator
	service *ProductService
	ctx     context.Context
}

func (suite *ProductServiceTestSuite) SetupTest() {
	suite.db = testutil.NewDB(suite.T())
	suite.assets = &fakeAssetStore{}
	suite.views = &recordingInvalidator{}
	log := testutil.NewLogger()
	suite.service = NewProductService(suite.db, suite.assets, NewTagService(log), suite.views, log)
	suite.ctx = context.Background()
}

func (suite *ProductServiceTestSuite) TearDownTest() {
	suite.service.Close()
}

func (suite *ProductServiceTestSuite) createLamp() *models.Product {
	product, err := suite.service.Create(suite.ctx, lampSubmission(`["lighting","modern"]`))
	suite.Require().NoError(err)
	suite.views.reset()
	return product
}

func (suite *ProductServiceTestSuite) count(model interface{}) int64 {
	var n int64
	suite.Require().NoError(suite.db.Model(model).Count(&n).Error)
	return n
}

func (suite *ProductServiceTestSuite) TestCreateLamp() {
	product, err := suite.service.Create(suite.ctx, lampSubmission(`["lighting","modern"]`))
	suite.Require().NoError(err)

	suite.NotEqual(uuid.Nil, product.ID)
	suite.Equal([]string{"lighting", "modern"}, product.TagNames())

	stored, err := suite.service.GetProduct(suite.ctx, product.ID)
	suite.Require().NoError(err)
	suite.Equal("Lamp", stored.Name)
	suite.Equal("A lamp", stored.Description)
	suite.Equal(2500, stored.PriceInCents)
	suite.True(stored.AvailableForPurchase)
	suite.Equal(suite.assets.uploads[0], stored.ImageSource)
	suite.Equal([]string{"lighting", "modern"}, stored.TagNames())

	suite.Equal([][]string{{ViewProducts, ViewStorefront, ViewAdminProducts}}, suite.views.calls)
}

func (suite *ProductServiceTestSuite) TestUpdateReconcilesTags() {
	lamp := suite.createLamp()

	updated, err := suite.service.Update(suite.ctx, lamp.ID, withoutImage(lampSubmission(`["modern","sale"]`)))
	suite.Require().NoError(err)
	suite.Equal([]string{"modern", "sale"}, updated.TagNames())

	stored, err := suite.service.GetProduct(suite.ctx, lamp.ID)
	suite.Require().NoError(err)
	suite.Equal([]string{"modern", "sale"}, stored.TagNames())
	suite.Equal(lamp.ImageSource, stored.ImageSource)

	suite.EqualValues(2, suite.count(&models.ProductTag{}))
	// Tags are never deleted.
	suite.EqualValues(3, suite.count(&models.Tag{}))

	suite.service.Close()
	suite.Empty(suite.assets.deleted())
	suite.Equal([][]string{{
		ViewProducts, ViewStorefront, ViewAdminProducts,
		ProductView(lamp.ID), ProductEditView(lamp.ID),
	}}, suite.views.calls)
}

func (suite *ProductServiceTestSuite) TestUpdateLeavesOtherProductsTags() {
	lamp := suite.createLamp()
	chair, err := suite.service.Create(suite.ctx, lampSubmission(`["modern"]`))
	suite.Require().NoError(err)

	_, err = suite.service.Update(suite.ctx, lamp.ID, withoutImage(lampSubmission(`["lighting"]`)))
	suite.Require().NoError(err)

	stored, err := suite.service.GetProduct(suite.ctx, chair.ID)
	suite.Require().NoError(err)
	suite.Equal([]string{"modern"}, stored.TagNames())
}

func (suite *ProductServiceTestSuite) TestUpdateScalarFields() {
	lamp := suite.createLamp()

	sub := withoutImage(lampSubmission(`[]`))
	sub.Fields[FieldName] = "Desk Lamp"
	sub.Fields[FieldPriceInCents] = "3100"
	sub.Fields[FieldAvailable] = "false"

	_, err := suite.service.Update(suite.ctx, lamp.ID, sub)
	suite.Require().NoError(err)

	stored, err := suite.service.GetProduct(suite.ctx, lamp.ID)
	suite.Require().NoError(err)
	suite.Equal("Desk Lamp", stored.Name)
	suite.Equal(3100, stored.PriceInCents)
	suite.False(stored.AvailableForPurchase)
	suite.Empty(stored.Tags)
}

func (suite *ProductServiceTestSuite) TestUpdateReplacesImage() {
	lamp := suite.createLamp()

	updated, err := suite.service.Update(suite.ctx, lamp.ID, lampSubmission(`["lighting","modern"]`))
	suite.Require().NoError(err)
	suite.NotEqual(lamp.ImageSource, updated.ImageSource)
	suite.Equal(suite.assets.uploads[1], updated.ImageSource)

	suite.service.Close()
	suite.Equal([]string{lamp.ImageSource}, suite.assets.deleted())
}

func (suite *ProductServiceTestSuite) TestUpdateUploadFailureKeepsProduct() {
	lamp := suite.createLamp()
	suite.assets.uploadErr = errors.New("blob store down")

	_, err := suite.service.Update(suite.ctx, lamp.ID, lampSubmission(`["sale"]`))
	suite.ErrorIs(err, ErrUploadFailed)

	stored, err := suite.service.GetProduct(suite.ctx, lamp.ID)
	suite.Require().NoError(err)
	suite.Equal(lamp.ImageSource, stored.ImageSource)
	suite.Equal([]string{"lighting", "modern"}, stored.TagNames())
	suite.Empty(suite.views.calls)
}

func (suite *ProductServiceTestSuite) TestUpdateNotFound() {
	_, err := suite.service.Update(suite.ctx, uuid.New(), lampSubmission(`[]`))
	suite.ErrorIs(err, ErrProductNotFound)
	suite.Empty(suite.assets.uploads)
	suite.Empty(suite.views.calls)
}

func (suite *ProductServiceTestSuite) TestCreateRejectsZeroPrice() {
	sub := lampSubmission(`[]`)
	sub.Fields[FieldPriceInCents] = "0"

	_, err := suite.service.Create(suite.ctx, sub)
	var verr *ValidationError
	suite.Require().ErrorAs(err, &verr)
	suite.Contains(verr.Fields, FieldPriceInCents)

	suite.Empty(suite.assets.uploads)
	suite.EqualValues(0, suite.count(&models.Product{}))
	suite.Empty(suite.views.calls)
}

func (suite *ProductServiceTestSuite) TestCreateRejectsNonImage() {
	sub := lampSubmission(`[]`)
	sub.Files[FieldImage] = &FileUpload{Name: "notes.txt", ContentType: "text/plain", Size: 4, Data: []byte("text")}

	_, err := suite.service.Create(suite.ctx, sub)
	var verr *ValidationError
	suite.Require().ErrorAs(err, &verr)
	suite.Equal([]string{msgNotImage}, verr.Fields[FieldImage])
	suite.Empty(suite.assets.uploads)
}

func (suite *ProductServiceTestSuite) TestCreateMalformedTags() {
	_, err := suite.service.Create(suite.ctx, lampSubmission(`["lighting"`))
	suite.ErrorIs(err, ErrMalformedPayload)
	suite.Empty(suite.assets.uploads)
}

func (suite *ProductServiceTestSuite) TestCreateUploadFailureWritesNothing() {
	suite.assets.uploadErr = errors.New("blob store down")

	_, err := suite.service.Create(suite.ctx, lampSubmission(`["lighting"]`))
	suite.ErrorIs(err, ErrUploadFailed)

	suite.EqualValues(0, suite.count(&models.Product{}))
	suite.EqualValues(0, suite.count(&models.Tag{}))
	suite.Empty(suite.views.calls)
}

func (suite *ProductServiceTestSuite) TestCreatePersistenceFailureReleasesUpload() {
	suite.Require().NoError(suite.db.Migrator().DropTable(&models.ProductTag{}))

	_, err := suite.service.Create(suite.ctx, lampSubmission(`["lighting"]`))
	var perr *PersistenceError
	suite.Require().ErrorAs(err, &perr)
	suite.Equal("insert product tags", perr.Op)

	suite.EqualValues(0, suite.count(&models.Product{}))
	suite.service.Close()
	suite.Equal(suite.assets.uploads, suite.assets.deleted())
	suite.Empty(suite.views.calls)
}

func (suite *ProductServiceTestSuite) TestDelete() {
	lamp := suite.createLamp()

	suite.Require().NoError(suite.service.Delete(suite.ctx, lamp.ID))

	_, err := suite.service.GetProduct(suite.ctx, lamp.ID)
	suite.ErrorIs(err, ErrProductNotFound)
	suite.EqualValues(0, suite.count(&models.ProductTag{}))
	suite.EqualValues(2, suite.count(&models.Tag{}))

	suite.service.Close()
	suite.Equal([]string{lamp.ImageSource}, suite.assets.deleted())
	suite.Len(suite.views.calls, 1)
	suite.Contains(suite.views.calls[0], ProductView(lamp.ID))
}

func (suite *ProductServiceTestSuite) TestDeleteNotFound() {
	err := suite.service.Delete(suite.ctx, uuid.New())
	suite.ErrorIs(err, ErrProductNotFound)

	suite.service.Close()
	suite.Empty(suite.assets.deleted())
	suite.Empty(suite.views.calls)
}

func (suite *ProductServiceTestSuite) TestDeleteRefusesOrderedProduct() {
	lamp := suite.createLamp()

	customer := models.User{Email: "buyer@example.com"}
	suite.Require().NoError(suite.db.Create(&customer).Error)
	order := models.Order{UserID: customer.ID, PricePaidInCents: 2500}
	suite.Require().NoError(suite.db.Create(&order).Error)
	item := models.OrderItem{OrderID: order.ID, ProductID: lamp.ID, Quantity: 1, PriceInCents: 2500}
	suite.Require().NoError(suite.db.Create(&item).Error)

	err := suite.service.Delete(suite.ctx, lamp.ID)
	suite.ErrorIs(err, ErrProductHasOrders)

	_, err = suite.service.GetProduct(suite.ctx, lamp.ID)
	suite.NoError(err)
	suite.service.Close()
	suite.Empty(suite.assets.deleted())
}

func (suite *ProductServiceTestSuite) TestToggleAvailability() {
	lamp := suite.createLamp()

	for i := 0; i < 2; i++ {
		product, err := suite.service.ToggleAvailability(suite.ctx, lamp.ID, false)
		suite.Require().NoError(err)
		suite.False(product.AvailableForPurchase)
		suite.Equal([]string{"lighting", "modern"}, product.TagNames())
	}

	stored, err := suite.service.GetProduct(suite.ctx, lamp.ID)
	suite.Require().NoError(err)
	suite.False(stored.AvailableForPurchase)
	suite.Len(suite.views.calls, 2)
	suite.ElementsMatch([]string{
		ViewProducts, ViewStorefront, ViewAdminProducts, ProductView(lamp.ID), ProductEditView(lamp.ID),
	}, suite.views.calls[0])

	_, err = suite.service.ToggleAvailability(suite.ctx, uuid.New(), true)
	suite.ErrorIs(err, ErrProductNotFound)
}

func (suite *ProductServiceTestSuite) TestUpdateKeepsImageReplacedConcurrently() {
	lamp := suite.createLamp()
	original := lamp.ImageSource

	// Another editor replaces the image between this update's existence
	// check and its transaction.
	var competing *models.Product
	armed := true
	err := suite.db.Callback().Query().After("gorm:query").Register("test:competing_update", func(db *gorm.DB) {
		if !armed || db.Statement.Table != "products" {
			return
		}
		armed = false
		product, err := suite.service.Update(suite.ctx, lamp.ID, lampSubmission(`["lighting","modern"]`))
		suite.Require().NoError(err)
		competing = product
	})
	suite.Require().NoError(err)

	sub := withoutImage(lampSubmission(`["lighting","modern"]`))
	sub.Fields[FieldName] = "Desk lamp"
	product, err := suite.service.Update(suite.ctx, lamp.ID, sub)
	suite.Require().NoError(err)
	suite.Require().NotNil(competing)
	suite.NotEqual(original, competing.ImageSource)

	suite.Equal("Desk lamp", product.Name)
	suite.Equal(competing.ImageSource, product.ImageSource)

	stored, err := suite.service.GetProduct(suite.ctx, lamp.ID)
	suite.Require().NoError(err)
	suite.Equal(competing.ImageSource, stored.ImageSource)

	suite.service.Close()
	suite.Equal([]string{original}, suite.assets.deleted())
}

func TestProductServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ProductServiceTestSuite))
}

func TestProductServiceCloseWaitsForDeletes(t *testing.T) {
	db := testutil.NewDB(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	assets := &fakeAssetStore{}
	log := testutil.NewLogger()
	service := NewProductService(db, assets, NewTagService(log), &recordingInvalidator{}, log)

	ctx := context.Background()
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		product, err := service.Create(ctx, lampSubmission(`["lighting"]`))
		require.NoError(t, err)
		ids = append(ids, product.ID)
	}
	for _, id := range ids {
		require.NoError(t, service.Delete(ctx, id))
	}

	service.Close()
	assert.ElementsMatch(t, assets.uploads, assets.deleted())
}
