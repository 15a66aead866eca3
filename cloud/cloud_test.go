// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package cloud

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentity/types"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/sesame/auth"
	"github.com/relabs-tech/sesame/core"
	"github.com/relabs-tech/sesame/core/client"
	"github.com/relabs-tech/sesame/core/config"
	"github.com/relabs-tech/sesame/history"
	"github.com/relabs-tech/sesame/mech"
	"github.com/relabs-tech/sesame/sign"
)

const fakeAPIKey = "FAKEFAKEFAKEFAKEFAKEFAKEFAKEFAKEFAKEFAKE"

var (
	deviceID  = uuid.MustParse("126d3d66-9222-4e5a-bcde-0c6629d48d43")
	secretKey = sign.Key{0x2b, 0x7e, 0x15, 0x16, 0x28, 0xae, 0xd2, 0xa6, 0xab, 0xf7, 0x15, 0x88, 0x09, 0xcf, 0x4f, 0x3c}
	fixedTime = time.Unix(1623054800, 0)
)

const historyFixture = `[
	{"recordID": 200, "type": 17, "timeStamp": 1623054800000, "historyTag": "c2VzYW1l"},
	{"recordID": 201, "type": 7, "timeStamp": 1623055834000}
]`

// fakeCloud records what it receives
type fakeCloud struct {
	mu       sync.Mutex
	status   string
	commands []CommandBody
	paths    []string
	headers  []http.Header
}

func (f *fakeCloud) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, r.URL.String())
	f.headers = append(f.headers, r.Header.Clone())
}

func (f *fakeCloud) router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/{device}", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if mux.Vars(r)["device"] != strings.ToUpper(deviceID.String()) {
			http.Error(w, "no such device", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, f.status)
	}).Methods(http.MethodGet)
	router.HandleFunc("/{device}/history", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, historyFixture)
	}).Methods(http.MethodGet)
	command := func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		var body CommandBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.commands = append(f.commands, body)
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}
	router.HandleFunc("/{device}/cmd", command).Methods(http.MethodPost)
	router.HandleFunc("/device/v1/iot/sesame2/{device}", command).Methods(http.MethodPost)
	return router
}

func newWebAPI(f *fakeCloud) *WebAPI {
	c := client.NewWithRouter(f.router())
	return NewWebAPI(&Builder{Client: &c})
}

func TestWebAPI_FetchStatus(t *testing.T) {
	f := &fakeCloud{status: `{"batteryPercentage":94,"batteryVoltage":5.869794721407625,"position":11,"CHSesame2Status":"locked","timestamp":1598523693}`}
	w := newWebAPI(f)

	raw, err := w.FetchStatus(context.Background(), deviceID)
	require.NoError(t, err)
	status, err := mech.Decode(mech.Lock, raw)
	require.NoError(t, err)
	assert.Equal(t, 11, status.Position())
	assert.True(t, status.IsInLockRange())
	assert.False(t, status.IsInUnlockRange())
	assert.InDelta(t, 5.8698, status.BatteryVoltage(), 0.001)
	assert.Equal(t, []string{"/126D3D66-9222-4E5A-BCDE-0C6629D48D43"}, f.paths)
}

func TestWebAPI_FetchStatusRejectsInvalid(t *testing.T) {
	testCases := []struct {
		name   string
		status string
	}{
		{"no state", `{"batteryVoltage":5.8,"position":11}`},
		{"bad state", `{"batteryVoltage":5.8,"position":11,"CHSesame2Status":"open"}`},
		{"position out of range", `{"batteryVoltage":5.8,"position":40000,"status":"locked"}`},
		{"not json", `<html></html>`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := newWebAPI(&fakeCloud{status: tc.status})
			_, err := w.FetchStatus(context.Background(), deviceID)
			assert.Error(t, err)
		})
	}
}

func TestWebAPI_FetchStatusUnknownDevice(t *testing.T) {
	w := newWebAPI(&fakeCloud{})
	_, err := w.FetchStatus(context.Background(), uuid.New())
	var statusErr *client.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Status)
}

func TestWebAPI_SendCommand(t *testing.T) {
	testCases := []core.Command{core.CommandLock, core.CommandUnlock, core.CommandToggle, core.CommandClick}
	for _, cmd := range testCases {
		f := &fakeCloud{}
		w := newWebAPI(f)
		err := w.SendCommand(context.Background(), core.CommandRequest{
			Device:     deviceID,
			Command:    cmd,
			HistoryTag: []byte("sesame"),
			Key:        secretKey,
			Time:       fixedTime,
		})
		require.NoError(t, err, cmd.String())
		require.Len(t, f.commands, 1)
		body := f.commands[0]
		assert.Equal(t, int(cmd), body.Cmd)
		assert.Equal(t, "c2VzYW1l", body.History)
		assert.Equal(t, sign.Sign(secretKey, fixedTime), body.Sign)
		assert.Len(t, body.Sign, 32)
		assert.Equal(t, "/126D3D66-9222-4E5A-BCDE-0C6629D48D43/cmd", f.paths[0])
	}
}

func TestWebAPI_History(t *testing.T) {
	testCases := []struct {
		page, pageSize int
		want           string
	}{
		{0, 10, "/126D3D66-9222-4E5A-BCDE-0C6629D48D43/history?page=0&lg=10"},
		{3, 50, "/126D3D66-9222-4E5A-BCDE-0C6629D48D43/history?page=3&lg=50"},
		{-1, 0, "/126D3D66-9222-4E5A-BCDE-0C6629D48D43/history?page=0&lg=10"},
	}
	for _, tc := range testCases {
		f := &fakeCloud{}
		w := newWebAPI(f)
		entries, err := w.History(context.Background(), deviceID, tc.page, tc.pageSize)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, history.WebUnlock, entries[0].Type)
		assert.Equal(t, []byte("sesame"), entries[0].Tag)
		assert.Equal(t, history.ManualLocked, entries[1].Type)
		assert.Equal(t, []string{tc.want}, f.paths)
	}
}

func TestWebAPI_Authorizer(t *testing.T) {
	f := &fakeCloud{status: `{"batteryVoltage":5.8,"position":11,"status":"unlocked"}`}
	c := client.NewWithRouter(f.router())
	a, err := auth.NewWebAPI(fakeAPIKey)
	require.NoError(t, err)
	w := NewWebAPI(&Builder{Client: &c, Authorizer: a})

	_, err = w.FetchStatus(context.Background(), deviceID)
	require.NoError(t, err)
	assert.Equal(t, fakeAPIKey, f.headers[0].Get(auth.APIKeyHeader))
}

func TestNewWebAPI_MissingAuthorizer(t *testing.T) {
	assert.Panics(t, func() { NewWebAPI(&Builder{}) })
}

type fakeCognito struct{}

func (fakeCognito) GetId(ctx context.Context, params *cognitoidentity.GetIdInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.GetIdOutput, error) {
	return &cognitoidentity.GetIdOutput{IdentityId: aws.String("ap-northeast-1:identity")}, nil
}

func (fakeCognito) GetCredentialsForIdentity(ctx context.Context, params *cognitoidentity.GetCredentialsForIdentityInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.GetCredentialsForIdentityOutput, error) {
	return &cognitoidentity.GetCredentialsForIdentityOutput{
		IdentityId: params.IdentityId,
		Credentials: &types.Credentials{
			AccessKeyId:  aws.String("TESTACCESSKEY12345"),
			SecretKey:    aws.String("ABCSECRETKEY"),
			SessionToken: aws.String("ABC12345"),
			Expiration:   aws.Time(time.Now().Add(time.Hour)),
		},
	}, nil
}

func TestGateway_SendCommand(t *testing.T) {
	cognito, err := auth.NewCognito(context.Background(), &auth.CognitoBuilder{APIKey: fakeAPIKey, Client: fakeCognito{}})
	require.NoError(t, err)

	webAPI := &fakeCloud{status: `{"batteryVoltage":5.8,"position":11,"status":"locked"}`}
	gateway := &fakeCloud{}
	wc := client.NewWithRouter(webAPI.router())
	gc := client.NewWithRouter(gateway.router())
	g, err := NewGateway(&GatewayBuilder{Cognito: cognito, Client: &wc, GatewayClient: &gc})
	require.NoError(t, err)

	err = g.SendCommand(context.Background(), core.CommandRequest{
		Device:     deviceID,
		Command:    core.CommandUnlock,
		HistoryTag: []byte("sesame"),
		Key:        secretKey,
		Time:       fixedTime,
	})
	require.NoError(t, err)
	require.Len(t, gateway.commands, 1)
	body := gateway.commands[0]
	assert.Equal(t, 83, body.Cmd)
	assert.Equal(t, sign.SignIoT(secretKey, fixedTime), body.Sign)
	assert.Len(t, body.Sign, sign.IoTSignLength)
	assert.Equal(t, "/device/v1/iot/sesame2/126D3D66-9222-4E5A-BCDE-0C6629D48D43", gateway.paths[0])

	header := gateway.headers[0]
	assert.Equal(t, fakeAPIKey, header.Get(auth.APIKeyHeader))
	assert.Equal(t, "ABC12345", header.Get("X-Amz-Security-Token"))
	authorization := header.Get("Authorization")
	assert.True(t, strings.HasPrefix(authorization, "AWS4-HMAC-SHA256 Credential=TESTACCESSKEY12345/"), authorization)
	assert.Contains(t, authorization, "/ap-northeast-1/execute-api/aws4_request")

	raw, err := g.FetchStatus(context.Background(), deviceID)
	require.NoError(t, err)
	status, err := mech.Decode(mech.Lock, raw)
	require.NoError(t, err)
	assert.True(t, status.IsInLockRange())
	assert.Empty(t, webAPI.commands)
}

func TestGateway_InvalidURL(t *testing.T) {
	cognito, err := auth.NewCognito(context.Background(), &auth.CognitoBuilder{APIKey: fakeAPIKey, Client: fakeCognito{}})
	require.NoError(t, err)
	_, err = NewGateway(&GatewayBuilder{Cognito: cognito, GatewayURL: "https://example.com"})
	assert.ErrorIs(t, err, auth.ErrNoRegion)
}

func TestNewFromConfig(t *testing.T) {
	testCases := []struct {
		auth    string
		gateway bool
	}{
		{config.AuthWebAPI, false},
		{config.AuthCognito, true},
	}
	for _, tc := range testCases {
		t.Run(tc.auth, func(t *testing.T) {
			service := &config.Service{
				APIKey:      fakeAPIKey,
				Auth:        tc.auth,
				HTTPTimeout: time.Second,
			}
			setup, err := NewFromConfig(context.Background(), service, fakeCognito{})
			require.NoError(t, err)
			require.NotNil(t, setup.Cognito)
			_, isGateway := setup.Channel.(*Gateway)
			assert.Equal(t, tc.gateway, isGateway)
		})
	}

	_, err := NewFromConfig(context.Background(), &config.Service{APIKey: "short"}, fakeCognito{})
	assert.ErrorIs(t, err, auth.ErrInvalidAPIKey)
}

func TestWebAPI_TimeoutAndUserAgent(t *testing.T) {
	var mu sync.Mutex
	var agents []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.Header.Get("User-Agent"))
		mu.Unlock()
		if r.URL.Query().Get("page") != "" {
			time.Sleep(500 * time.Millisecond)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	a, err := auth.NewWebAPI(fakeAPIKey)
	require.NoError(t, err)
	w := NewWebAPI(&Builder{URL: server.URL, Authorizer: a, Timeout: 50 * time.Millisecond})

	_, err = w.History(context.Background(), deviceID, DefaultPage, DefaultPageSize)
	assert.Error(t, err, "history must time out")

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, agents)
	assert.Equal(t, UserAgent, agents[0])
}
