// Copyright 2026 DeviceLink, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package linksdk

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	httpTimeout = 8 * time.Second

	pathNodeActivate = "/iot-core/v2/secret-node/user/activate"
	pathRtmAccount   = "/call-service/v1/control/start"

	methodUserStartCall   = "user-start-call"
	methodDeviceStartCall = "device-start-call"

	respCodeOK           = 0
	respCodeInvalidToken = 401
)

// HTTPClientProvider supplies the http.Client used for signaling requests,
// letting applications inject custom transports or proxies.
type HTTPClientProvider struct {
	NewHTTPClient func(name string) *http.Client
}

func defaultHTTPClientProvider() *HTTPClientProvider {
	return &HTTPClientProvider{
		NewHTTPClient: func(name string) *http.Client {
			return &http.Client{Timeout: httpTimeout}
		},
	}
}

// SignalConfig configures the HTTP signaling client.
type SignalConfig struct {
	// Base URL for node activation requests.
	MasterServerURL string
	// Base URL for messaging account requests.
	SlaveServerURL string
	// Full URL of the device connect endpoint.
	ConnectDeviceURL string

	BasicAuthKey    string
	BasicAuthSecret string

	Provider *HTTPClientProvider
}

type requestHeader struct {
	TraceID   string `json:"traceId"`
	Timestamp int64  `json:"timestamp"`
	NodeToken string `json:"nodeToken,omitempty"`
	Method    string `json:"method,omitempty"`
}

type requestEnvelope struct {
	Header  requestHeader `json:"header"`
	Payload interface{}   `json:"payload"`
}

type responseEnvelope struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// SignalClient performs the synchronous HTTPS request/response exchanges of
// the signaling plane. All methods are blocking and safe for concurrent use.
type SignalClient struct {
	conf   SignalConfig
	client *http.Client
}

func NewSignalClient(conf SignalConfig) *SignalClient {
	provider := conf.Provider
	if provider == nil {
		provider = defaultHTTPClientProvider()
	}
	return &SignalClient{
		conf:   conf,
		client: provider.NewHTTPClient("signal"),
	}
}

// NodeActivateResult carries the local node identity handed out by the server.
type NodeActivateResult struct {
	ErrCode     ErrCode
	Message     string
	NodeID      string
	NodeRegion  string
	NodeToken   string
	RtmServer   string
	RtmUsername string
}

// NodeActivate registers the local user as a signaling node.
func (c *SignalClient) NodeActivate(traceID int64, appID, userID string, clientType int) NodeActivateResult {
	env := requestEnvelope{
		Header: requestHeader{
			TraceID:   strconv.FormatInt(traceID, 10),
			Timestamp: time.Now().UnixMilli(),
		},
		Payload: map[string]interface{}{
			"appId":      appID,
			"userId":     userID,
			"clientType": clientType,
		},
	}
	resp, code := c.request(c.conf.MasterServerURL+pathNodeActivate, http.MethodPost, env)
	if code != XOK {
		return NodeActivateResult{ErrCode: code}
	}
	if resp.Code != respCodeOK {
		getLogger().Warn("node activate rejected", "code", resp.Code, "message", resp.Message)
		return NodeActivateResult{ErrCode: XErrHttpRespData, Message: resp.Message}
	}
	var data struct {
		NodeID      string `json:"nodeId"`
		NodeRegion  string `json:"nodeRegion"`
		NodeToken   string `json:"nodeToken"`
		RtmServer   string `json:"rtmServer"`
		RtmUsername string `json:"rtmUsername"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return NodeActivateResult{ErrCode: XErrHttpRespData}
	}
	return NodeActivateResult{
		ErrCode:     XOK,
		Message:     resp.Message,
		NodeID:      data.NodeID,
		NodeRegion:  data.NodeRegion,
		NodeToken:   data.NodeToken,
		RtmServer:   data.RtmServer,
		RtmUsername: data.RtmUsername,
	}
}

// RtmAccountResult carries the messaging token for the local user.
type RtmAccountResult struct {
	ErrCode  ErrCode
	Message  string
	RtmToken string
}

// RequestRtmAccount fetches a messaging token allowing the controller to
// exchange peer messages with the controlled device.
func (c *SignalClient) RequestRtmAccount(traceID int64, nodeToken, appID, controllerID, controlledID string) RtmAccountResult {
	env := requestEnvelope{
		Header: requestHeader{
			TraceID:   strconv.FormatInt(traceID, 10),
			Timestamp: time.Now().UnixMilli(),
			NodeToken: nodeToken,
		},
		Payload: map[string]interface{}{
			"appId":            appID,
			"controllerDevId":  controllerID,
			"controlledDevId":  controlledID,
		},
	}
	resp, code := c.request(c.conf.SlaveServerURL+pathRtmAccount, http.MethodPost, env)
	if code != XOK {
		return RtmAccountResult{ErrCode: code}
	}
	if resp.Code == respCodeInvalidToken {
		return RtmAccountResult{ErrCode: XErrTokenInvalid, Message: resp.Message}
	}
	if resp.Code != respCodeOK {
		return RtmAccountResult{ErrCode: XErrHttpRespData, Message: resp.Message}
	}
	var data struct {
		RtmToken string `json:"rtmToken"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return RtmAccountResult{ErrCode: XErrHttpRespData}
	}
	return RtmAccountResult{ErrCode: XOK, Message: resp.Message, RtmToken: data.RtmToken}
}

// ConnectDeviceReq describes one call request to a device.
type ConnectDeviceReq struct {
	TraceID   int64
	NodeToken string
	AppID     string
	UserID    string
	DeviceID  string
	AttachMsg string
}

// EncodeConnectDeviceReq renders the request into the envelope text that
// travels through the transport packet queue.
func EncodeConnectDeviceReq(req ConnectDeviceReq) (string, ErrCode) {
	env := requestEnvelope{
		Header: requestHeader{
			TraceID:   strconv.FormatInt(req.TraceID, 10),
			Timestamp: time.Now().UnixMilli(),
			NodeToken: req.NodeToken,
			Method:    methodUserStartCall,
		},
		Payload: map[string]interface{}{
			"appId":     req.AppID,
			"callerId":  req.UserID,
			"calleeId":  req.DeviceID,
			"attachMsg": req.AttachMsg,
		},
	}
	body, err := json.Marshal(&env)
	if err != nil {
		return "", XErrJsonWrite
	}
	return string(body), XOK
}

// DevConnectResult carries the channel grant returned by the device connect
// endpoint.
type DevConnectResult struct {
	ErrCode  ErrCode
	Message  string
	ChnlName string
	RtcUID   uint32
	RtcToken string
	RtmUID   string
	RtmToken string
	UserID   string
}

// ConnectDevice posts a pre-rendered connect envelope and parses the grant.
func (c *SignalClient) ConnectDevice(content string) DevConnectResult {
	resp, code := c.requestRaw(c.conf.ConnectDeviceURL, http.MethodPost, []byte(content))
	if code != XOK {
		return DevConnectResult{ErrCode: code}
	}
	if resp.Code == respCodeInvalidToken {
		return DevConnectResult{ErrCode: XErrTokenInvalid, Message: resp.Message}
	}
	if resp.Code != respCodeOK {
		getLogger().Warn("connect device rejected", "code", resp.Code, "message", resp.Message)
		return DevConnectResult{ErrCode: XErrHttpRespData, Message: resp.Message}
	}
	var data struct {
		ChnlName string `json:"cname"`
		RtcUID   uint32 `json:"uid"`
		RtcToken string `json:"token"`
		RtmUID   string `json:"rtmUid"`
		RtmToken string `json:"rtmToken"`
		UserID   string `json:"userId"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return DevConnectResult{ErrCode: XErrHttpRespData}
	}
	return DevConnectResult{
		ErrCode:  XOK,
		Message:  resp.Message,
		ChnlName: data.ChnlName,
		RtcUID:   data.RtcUID,
		RtcToken: data.RtcToken,
		RtmUID:   data.RtmUID,
		RtmToken: data.RtmToken,
		UserID:   data.UserID,
	}
}

func (c *SignalClient) request(fullURL, method string, env requestEnvelope) (*responseEnvelope, ErrCode) {
	body, err := json.Marshal(&env)
	if err != nil {
		return nil, XErrJsonWrite
	}
	return c.requestRaw(fullURL, method, body)
}

func (c *SignalClient) requestRaw(fullURL, method string, body []byte) (*responseEnvelope, ErrCode) {
	if !strings.HasPrefix(fullURL, "http://") && !strings.HasPrefix(fullURL, "https://") {
		return nil, XErrHttpURL
	}
	switch method {
	case http.MethodPost, http.MethodGet, http.MethodDelete:
	default:
		return nil, XErrHttpMethod
	}

	req, err := http.NewRequest(method, fullURL, bytes.NewReader(body))
	if err != nil {
		return nil, XErrHttpURL
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.conf.BasicAuthKey, c.conf.BasicAuthSecret)

	resp, err := c.client.Do(req)
	if err != nil {
		getLogger().Warn("signal request failed", "url", fullURL, "error", err)
		return nil, XErrHttpConnect
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, XErrHttpNoResponse
	}
	if resp.StatusCode != http.StatusOK {
		getLogger().Warn("signal request bad status", "url", fullURL, "status", resp.StatusCode)
		return nil, XErrHttpRespCode
	}

	var env responseEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, XErrHttpRespData
	}
	return &env, XOK
}
