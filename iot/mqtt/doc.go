// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*Package mqtt subscribes to device shadow updates of the vendor IoT endpoint

The endpoint accepts MQTT over websockets only. The websocket url is presigned with
SigV4 for the service "iotdevicegateway", using the temporary credentials of the
Cognito identity pool. The session token is appended after signing:

	wss://{endpoint}/mqtt?X-Amz-Algorithm=...&X-Amz-Signature=...&X-Amz-Security-Token=...

Each (re)connect presigns a new url, so expired credentials are replaced transparently.
Subscriptions are restored after a reconnect.

For tests the client connects to a plain broker url instead, see Builder.BrokerURL.
*/
package mqtt
