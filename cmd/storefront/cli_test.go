package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/config"
	"github.com/Skotchmaster/storefront/internal/gateway"
	"github.com/Skotchmaster/storefront/internal/gateway/gatewaytest"
	"github.com/Skotchmaster/storefront/internal/models"
)

func testApp(fake *gatewaytest.Fake, url string) (*app, *bytes.Buffer) {
	var out bytes.Buffer
	return &app{
		out: &out,
		cfg: &config.Config{
			GatewayURL: url,
			TokenFile:  "",
			LogLevel:   "error",
			Timeout:    5 * time.Second,
		},
		newGateway: func(*config.Config) gateway.Gateway { return fake },
	}, &out
}

func execute(t *testing.T, fake *gatewaytest.Fake, args ...string) (string, error) {
	t.Helper()
	a, out := testApp(fake, "http://gateway.test")
	root := newRootCmd(a)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestProducts(t *testing.T) {
	fake := gatewaytest.New()
	fake.Seed("Tomato", "Vegetables", 40)
	fake.Seed("Milk", "Dairy", 60)

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{"all", []string{"products"}, []string{"Tomato", "Milk"}, nil},
		{"category", []string{"products", "--category", "Dairy"}, []string{"Milk"}, []string{"Tomato"}},
		{"empty category", []string{"products", "-c", "Food"}, []string{"No products found"}, nil},
		{"search", []string{"search", "tom"}, []string{"Tomato"}, []string{"Milk"}},
		{"one", []string{"product", "2"}, []string{"Milk", "Dairy"}, nil},
		{"missing", []string{"product", "99"}, []string{"Product not found."}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, fake, tt.args...)
			require.NoError(t, err)
			for _, s := range tt.want {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.notWant {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestBadArguments(t *testing.T) {
	fake := gatewaytest.New()
	for _, args := range [][]string{
		{"product", "abc"},
		{"cart", "add", "0"},
		{"cart", "set", "1", "x"},
		{"checkout", "--payment", "card"},
	} {
		_, err := execute(t, fake, args...)
		assert.Error(t, err, args)
	}
	assert.Zero(t, fake.Calls("AddToCart"))
	assert.Zero(t, fake.Calls("Checkout"))
}

func TestCartAndCheckout(t *testing.T) {
	fake := gatewaytest.New()
	id := fake.Seed("Paneer", "Dairy", 120)

	out, err := execute(t, fake, "cart", "add", strconv.FormatInt(id, 10), "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Added to cart!")
	assert.Contains(t, out, "Paneer")
	assert.Contains(t, out, "Items: 2")

	out, err = execute(t, fake, "cart", "set", strconv.FormatInt(id, 10), "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Items: 3")

	out, err = execute(t, fake, "checkout", "--payment", "upi")
	require.NoError(t, err)
	assert.Contains(t, out, "Scan the QR code")
	assert.Contains(t, out, "Order placed successfully!")
	assert.Contains(t, out, "Order #1")

	out, err = execute(t, fake, "orders")
	require.NoError(t, err)
	assert.Contains(t, out, "#1")

	cart, err := fake.GetCartSummary(t.Context())
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, 1, fake.Calls("Checkout"))
}

func TestCheckoutEmptyCartShowsCart(t *testing.T) {
	fake := gatewaytest.New()
	out, err := execute(t, fake, "checkout")
	require.NoError(t, err)
	assert.Contains(t, out, "Your cart is empty.")
	assert.Zero(t, fake.Calls("Checkout"))
}

func TestMutationFailureIsShownOnce(t *testing.T) {
	fake := gatewaytest.New()
	out, err := execute(t, fake, "cart", "add", "42")
	require.Error(t, err)

	var shown *shownError
	require.True(t, errors.As(err, &shown))
	assert.True(t, errors.Is(err, gateway.ErrNotFound))
	assert.Contains(t, out, "error:")
	assert.NotContains(t, out, "Shopping Cart")
}

func TestProfile(t *testing.T) {
	fake := gatewaytest.New()

	out, err := execute(t, fake, "profile")
	require.NoError(t, err)
	assert.Contains(t, out, "No profile saved yet.")

	_, err = execute(t, fake, "profile", "set", "--address", "somewhere")
	require.Error(t, err)
	assert.Zero(t, fake.Calls("SaveCallerProfile"))

	out, err = execute(t, fake, "profile", "set", "--name", "Asha", "--phone", "12345")
	require.NoError(t, err)
	assert.Contains(t, out, "Profile saved")
	assert.Contains(t, out, "Asha")

	out, err = execute(t, fake, "role")
	require.NoError(t, err)
	assert.Contains(t, out, "Role: user")
}

func TestAdminGate(t *testing.T) {
	fake := gatewaytest.New()
	fake.Seed("Rice", "Groceries", 90)

	out, err := execute(t, fake, "admin", "orders")
	require.ErrorIs(t, err, errAccessDenied)
	assert.Contains(t, out, "Access Denied")
	assert.NotContains(t, out, "All Orders")
	assert.Zero(t, fake.Calls("ListAllOrders"))

	fake.SetRole("caller", models.RoleAdmin)
	out, err = execute(t, fake, "admin", "orders")
	require.NoError(t, err)
	assert.Contains(t, out, "All Orders")
	assert.NotContains(t, out, "Access Denied")
}

func TestAdminGateUnresolved(t *testing.T) {
	fake := gatewaytest.New()
	fake.NotReady = true

	out, err := execute(t, fake, "admin", "products")
	require.Error(t, err)
	assert.NotErrorIs(t, err, errAccessDenied)
	assert.Contains(t, out, "Checking permissions...")
	assert.NotContains(t, out, "Access Denied")
}

func TestAdminProducts(t *testing.T) {
	fake := gatewaytest.New()
	fake.SetRole("caller", models.RoleAdmin)

	img := filepath.Join(t.TempDir(), "apple.png")
	require.NoError(t, os.WriteFile(img, []byte("\x89PNG\r\n\x1a\nfake"), 0o600))

	_, err := execute(t, fake, "admin", "add-product", "--name", "Apple", "--category", "Food", "--price", "30")
	require.Error(t, err, "image is required on add")
	assert.Zero(t, fake.Calls("AddProduct"))

	out, err := execute(t, fake, "admin", "add-product",
		"--name", "Apple", "--category", "Food", "--price", "30", "--image", img)
	require.NoError(t, err)
	assert.Contains(t, out, "Product added successfully!")

	out, err = execute(t, fake, "admin", "update-product", "1", "--price", "35")
	require.NoError(t, err)
	assert.Contains(t, out, "Product updated successfully!")

	p, err := fake.GetProduct(t.Context(), 1)
	require.NoError(t, err)
	got, ok := p.Get()
	require.True(t, ok)
	assert.Equal(t, "Apple", got.Name)
	assert.Equal(t, "Food", got.Category)
	assert.Equal(t, models.Money(35), got.Price)
	assert.False(t, got.Image.IsZero())

	_, err = execute(t, fake, "admin", "update-product", "7", "--price", "1")
	require.Error(t, err)
	assert.Equal(t, 1, fake.Calls("UpdateProduct"))
}

func TestAdminOrderStatusAndRoles(t *testing.T) {
	fake := gatewaytest.New()
	fake.Seed("Bread", "Food", 45)
	require.NoError(t, fake.AddToCart(t.Context(), 1, 1))
	_, err := fake.Checkout(t.Context(), models.PaymentCOD)
	require.NoError(t, err)
	fake.SetRole("caller", models.RoleAdmin)

	out, err := execute(t, fake, "admin", "order-status", "1", "shipped")
	require.NoError(t, err)
	assert.Contains(t, out, "Order status updated")

	o, err := fake.GetOrder(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, "shipped", o.Status)

	_, err = execute(t, fake, "admin", "assign-role", "someone", "owner")
	require.Error(t, err)
	assert.Zero(t, fake.Calls("AssignRole"))

	out, err = execute(t, fake, "admin", "assign-role", "caller", "user")
	require.NoError(t, err)
	assert.Contains(t, out, "caller is now user")

	out, err = execute(t, fake, "admin", "products")
	require.ErrorIs(t, err, errAccessDenied)
	assert.Contains(t, out, "Access Denied")
}

func TestLoginSavesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/auth/login" && creds["password"] == "secret1":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "tok-123",
				"access_exp":   time.Now().Add(time.Hour).Unix(),
				"role":         "admin",
			})
		case r.URL.Path == "/auth/register":
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "u1", "username": creds["username"], "role": "user"})
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "error", "message": "invalid credentials"})
		}
	}))
	defer srv.Close()

	a, out := testApp(nil, srv.URL)
	a.cfg.TokenFile = filepath.Join(t.TempDir(), "storefront", "token")

	root := newRootCmd(a)
	root.SetArgs([]string{"register", "-u", "asha", "--password", "secret1"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Registered asha (user)")

	root = newRootCmd(a)
	root.SetArgs([]string{"login", "-u", "asha", "--password", "wrong"})
	require.Error(t, root.Execute())
	_, err := os.Stat(a.cfg.TokenFile)
	assert.True(t, os.IsNotExist(err))

	root = newRootCmd(a)
	root.SetArgs([]string{"login", "-u", "asha", "--password", "secret1"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Logged in as asha (admin)")

	tok, err := config.ReadToken(a.cfg.TokenFile)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", tok)
	assert.Equal(t, "tok-123", a.cfg.Token)
}
