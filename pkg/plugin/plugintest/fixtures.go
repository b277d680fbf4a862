package plugintest

import (
	"github.com/kpal-project/kpal/pkg/models"
	"github.com/kpal-project/kpal/pkg/plugin"
)

// DemoAttributes builds the four-attribute fixture matching
// cmd/kpal-demo-plugin: x:Double, y:Int, z:Uint, msg:String="foobar".
// All four use
// Update in both phases, matching the demo plugin's straightforward
// cached-value semantics (no hardware-backed GetAndSet attributes).
func DemoAttributes() []AttributeDef {
	const update = plugin.CallbackUpdate
	return []AttributeDef{
		{ID: 0, Name: "x", PreInit: true, Value: models.NewDouble(0), InitCallback: update, RunCallback: update},
		{ID: 1, Name: "y", PreInit: true, Value: models.NewInt(0), InitCallback: update, RunCallback: update},
		{ID: 2, Name: "z", PreInit: true, Value: models.NewUint(0), InitCallback: update, RunCallback: update},
		{ID: 3, Name: "msg", PreInit: true, Value: models.NewString("foobar"), InitCallback: update, RunCallback: update},
	}
}

// NewDemo returns a Fake preloaded with DemoAttributes.
func NewDemo() *Fake {
	return New(DemoAttributes()...)
}
