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

import "strconv"

// ErrCode is the unified numeric result code returned by SDK operations and
// delivered through completion listeners. XOK means success, everything else
// is a failure. Codes are stable across releases so applications can switch
// on them.
type ErrCode int

const (
	XOK ErrCode = 0

	// generic
	XErrUnknown        ErrCode = -1
	XErrInvalidParam   ErrCode = -2
	XErrUnsupported    ErrCode = -3
	XErrBadState       ErrCode = -4
	XErrSdkNotReady    ErrCode = -5
	XErrTimeout        ErrCode = -6
	XErrNetwork        ErrCode = -7
	XErrTokenInvalid   ErrCode = -8
	XErrInvokeTooOften ErrCode = -9
	XErrNotFound       ErrCode = -10

	// JSON encoding and decoding
	XErrJsonWrite ErrCode = -20
	XErrJsonParse ErrCode = -21

	// HTTP signaling
	XErrHttpURL        ErrCode = -30
	XErrHttpMethod     ErrCode = -31
	XErrHttpConnect    ErrCode = -32
	XErrHttpNoResponse ErrCode = -33
	XErrHttpRespCode   ErrCode = -34
	XErrHttpRespData   ErrCode = -35

	// messaging link login
	XErrRtmLoginUnknown        ErrCode = -50
	XErrRtmLoginRejected       ErrCode = -51
	XErrRtmLoginInvalidArg     ErrCode = -52
	XErrRtmLoginInvalidAppID   ErrCode = -53
	XErrRtmLoginInvalidToken   ErrCode = -54
	XErrRtmLoginTokenExpired   ErrCode = -55
	XErrRtmLoginNotAuthorized  ErrCode = -56
	XErrRtmLoginAlreadyLogin   ErrCode = -57
	XErrRtmLoginTimeout        ErrCode = -58
	XErrRtmLoginTooOften       ErrCode = -59
	XErrRtmLoginNotInitialized ErrCode = -60

	// messaging link token renewal
	XErrRtmRenewFailure      ErrCode = -65
	XErrRtmRenewInvalidArg   ErrCode = -66
	XErrRtmRenewTokenExpired ErrCode = -67
	XErrRtmRenewInvalidToken ErrCode = -68
	XErrRtmRenewNotLoggedIn  ErrCode = -69

	// messaging link logout
	XErrRtmLogoutFailure        ErrCode = -72
	XErrRtmLogoutRejected       ErrCode = -73
	XErrRtmLogoutNotInitialized ErrCode = -74
	XErrRtmLogoutNotLoggedIn    ErrCode = -75

	// peer messaging
	XErrRtmMsgFailure         ErrCode = -80
	XErrRtmMsgTimeout         ErrCode = -81
	XErrRtmMsgPeerUnreachable ErrCode = -82
	XErrRtmMsgCachedByServer  ErrCode = -83
	XErrRtmMsgTooOften        ErrCode = -84
	XErrRtmMsgInvalid         ErrCode = -85
	XErrRtmMsgIncompatible    ErrCode = -86
	XErrRtmMsgNotInitialized  ErrCode = -87
	XErrRtmMsgNotLoggedIn     ErrCode = -88
	XErrRtmMsgPeerIDInvalid   ErrCode = -89

	// device commands
	XErrDevCmdTimeout     ErrCode = -100
	XErrDevCmdNoResponse  ErrCode = -101
	XErrDevCmdInvalidData ErrCode = -102

	// device media files
	XErrMediaNotExist    ErrCode = -110
	XErrMediaInDeleting  ErrCode = -111
	XErrMediaSysBusy     ErrCode = -112
	XErrMediaSdcard      ErrCode = -113
	XErrMediaStopped     ErrCode = -114
	XErrMediaOpenFailure ErrCode = -115

	// local media conversion
	XErrConvertOpen ErrCode = -120
	XErrConvertStep ErrCode = -121
)

// OK reports whether the code indicates success.
func (e ErrCode) OK() bool { return e == XOK }

func (e ErrCode) String() string {
	if name, ok := errCodeNames[e]; ok {
		return name
	}
	return "XErr(" + strconv.Itoa(int(e)) + ")"
}

var errCodeNames = map[ErrCode]string{
	XOK:                        "XOK",
	XErrUnknown:                "XErrUnknown",
	XErrInvalidParam:           "XErrInvalidParam",
	XErrUnsupported:            "XErrUnsupported",
	XErrBadState:               "XErrBadState",
	XErrSdkNotReady:            "XErrSdkNotReady",
	XErrTimeout:                "XErrTimeout",
	XErrNetwork:                "XErrNetwork",
	XErrTokenInvalid:           "XErrTokenInvalid",
	XErrInvokeTooOften:         "XErrInvokeTooOften",
	XErrNotFound:               "XErrNotFound",
	XErrJsonWrite:              "XErrJsonWrite",
	XErrJsonParse:              "XErrJsonParse",
	XErrHttpURL:                "XErrHttpURL",
	XErrHttpMethod:             "XErrHttpMethod",
	XErrHttpConnect:            "XErrHttpConnect",
	XErrHttpNoResponse:         "XErrHttpNoResponse",
	XErrHttpRespCode:           "XErrHttpRespCode",
	XErrHttpRespData:           "XErrHttpRespData",
	XErrRtmLoginUnknown:        "XErrRtmLoginUnknown",
	XErrRtmLoginRejected:       "XErrRtmLoginRejected",
	XErrRtmLoginInvalidArg:     "XErrRtmLoginInvalidArg",
	XErrRtmLoginInvalidAppID:   "XErrRtmLoginInvalidAppID",
	XErrRtmLoginInvalidToken:   "XErrRtmLoginInvalidToken",
	XErrRtmLoginTokenExpired:   "XErrRtmLoginTokenExpired",
	XErrRtmLoginNotAuthorized:  "XErrRtmLoginNotAuthorized",
	XErrRtmLoginAlreadyLogin:   "XErrRtmLoginAlreadyLogin",
	XErrRtmLoginTimeout:        "XErrRtmLoginTimeout",
	XErrRtmLoginTooOften:       "XErrRtmLoginTooOften",
	XErrRtmLoginNotInitialized: "XErrRtmLoginNotInitialized",
	XErrRtmRenewFailure:        "XErrRtmRenewFailure",
	XErrRtmRenewInvalidArg:     "XErrRtmRenewInvalidArg",
	XErrRtmRenewTokenExpired:   "XErrRtmRenewTokenExpired",
	XErrRtmRenewInvalidToken:   "XErrRtmRenewInvalidToken",
	XErrRtmRenewNotLoggedIn:    "XErrRtmRenewNotLoggedIn",
	XErrRtmLogoutFailure:       "XErrRtmLogoutFailure",
	XErrRtmLogoutRejected:      "XErrRtmLogoutRejected",
	XErrRtmLogoutNotInitialized: "XErrRtmLogoutNotInitialized",
	XErrRtmLogoutNotLoggedIn:   "XErrRtmLogoutNotLoggedIn",
	XErrRtmMsgFailure:          "XErrRtmMsgFailure",
	XErrRtmMsgTimeout:          "XErrRtmMsgTimeout",
	XErrRtmMsgPeerUnreachable:  "XErrRtmMsgPeerUnreachable",
	XErrRtmMsgCachedByServer:   "XErrRtmMsgCachedByServer",
	XErrRtmMsgTooOften:         "XErrRtmMsgTooOften",
	XErrRtmMsgInvalid:          "XErrRtmMsgInvalid",
	XErrRtmMsgIncompatible:     "XErrRtmMsgIncompatible",
	XErrRtmMsgNotInitialized:   "XErrRtmMsgNotInitialized",
	XErrRtmMsgNotLoggedIn:      "XErrRtmMsgNotLoggedIn",
	XErrRtmMsgPeerIDInvalid:    "XErrRtmMsgPeerIDInvalid",
	XErrDevCmdTimeout:          "XErrDevCmdTimeout",
	XErrDevCmdNoResponse:       "XErrDevCmdNoResponse",
	XErrDevCmdInvalidData:      "XErrDevCmdInvalidData",
	XErrMediaNotExist:          "XErrMediaNotExist",
	XErrMediaInDeleting:        "XErrMediaInDeleting",
	XErrMediaSysBusy:           "XErrMediaSysBusy",
	XErrMediaSdcard:            "XErrMediaSdcard",
	XErrMediaStopped:           "XErrMediaStopped",
	XErrMediaOpenFailure:       "XErrMediaOpenFailure",
	XErrConvertOpen:            "XErrConvertOpen",
	XErrConvertStep:            "XErrConvertStep",
}
