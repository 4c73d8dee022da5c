package manifest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleManifest = `<?xml version="1.0" encoding="utf-8"?>
<manifest package="com.example.app">
  <application>
    <activity android:name=".MainActivity" android:exported="true"/>
    <service android:name="com.example.app.UploadService" android:exported="false">
      <intent-filter>
        <action android:name="com.example.app.ACTION_UPLOAD"/>
      </intent-filter>
    </service>
    <receiver android:name=".BootReceiver"/>
    <provider android:name=".FileProvider" android:authorities="com.example.app.files"/>
  </application>
</manifest>`

func TestParseComponentKinds(t *testing.T) {
	inv, err := Parse(strings.NewReader(sampleManifest))
	require.NoError(t, err)
	require.Equal(t, "com.example.app", inv.Package)
	require.Len(t, inv.Components, 4)

	byKind := map[Kind]int{}
	for _, c := range inv.Components {
		byKind[c.Kind]++
	}
	require.Equal(t, 1, byKind[Activity])
	require.Equal(t, 1, byKind[Service])
	require.Equal(t, 1, byKind[Receiver])
	require.Equal(t, 1, byKind[Provider])
}

func TestRelativeNameQualification(t *testing.T) {
	inv, err := Parse(strings.NewReader(sampleManifest))
	require.NoError(t, err)

	var activity Component
	for _, c := range inv.Components {
		if c.Kind == Activity {
			activity = c
		}
	}
	require.Equal(t, "com.example.app.MainActivity", activity.Name)
}

func TestExportedDefaultsFalseWithoutIntentFilter(t *testing.T) {
	inv, err := Parse(strings.NewReader(sampleManifest))
	require.NoError(t, err)

	var receiver Component
	for _, c := range inv.Components {
		if c.Kind == Receiver {
			receiver = c
		}
	}
	require.False(t, receiver.Exported, "no intent-filter and no explicit attribute should default to false")
}

func TestActionRoutes(t *testing.T) {
	inv, err := Parse(strings.NewReader(sampleManifest))
	require.NoError(t, err)

	routes := inv.ActionRoutes()
	require.Contains(t, routes, "com.example.app.ACTION_UPLOAD")
	require.Len(t, routes["com.example.app.ACTION_UPLOAD"], 1)
}

func TestAuthorityRoutes(t *testing.T) {
	inv, err := Parse(strings.NewReader(sampleManifest))
	require.NoError(t, err)

	routes := inv.AuthorityRoutes()
	require.Contains(t, routes, "com.example.app.files")
}

func TestFilterByPackagePrefix(t *testing.T) {
	inv, err := Parse(strings.NewReader(sampleManifest))
	require.NoError(t, err)

	filtered := inv.FilterByPackagePrefix("com.example.app")
	require.Len(t, filtered, 4)

	none := inv.FilterByPackagePrefix("com.other")
	require.Empty(t, none)
}
