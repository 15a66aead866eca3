// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*Package iot provides the push side of the vendor cloud

Every device has a named shadow on the thing "sesame2". Whenever the device reports a new
mechanical status, the cloud publishes the shadow document on

	$aws/things/sesame2/shadow/name/{UUID}/update/accepted

The reported state carries the binary mechanical status as hex string under "mechst".

Subpackage mqtt subscribes to shadow updates over MQTT on a SigV4 presigned websocket.
Subpackage dataplane reads the current shadow document over the IoT data plane API.
Subpackage shadowbroker is a local MQTT broker speaking the same topics, for tests and
for offline development.
*/
package iot
