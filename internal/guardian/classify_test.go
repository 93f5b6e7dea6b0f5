package guardian

import (
	"testing"

	"github.com/stretchr/testify/assert"

	t_ "artificer/internal/types"
)

func TestClassifyTiers(t *testing.T) {
	code := map[string]string{
		"README.md":  "# Demo\n",
		"test_a.py":  "def test_a():\n    assert True\n",
		"hello.py":   "print('hello world')\n",
		"logic.py":   "import json\n\ndef load(p):\n    with open(p) as f:\n        return json.load(f)\n\ndef a():\n    pass\n\ndef b():\n    pass\n\ndef c():\n    pass\n\ndef d():\n    pass\n\ndef e():\n    pass\n",
		"runner.py":  "import subprocess\n\nsubprocess.run(['ls'])\n",
		"fetcher.py": "import requests\n\nrequests.get('https://example.com')\n",
	}
	tiers := Classify(code)

	assert.Equal(t, t_.TierTrusted, tiers["README.md"])
	assert.Equal(t, t_.TierTrusted, tiers["test_a.py"])
	assert.Equal(t, t_.TierTrusted, tiers["hello.py"]) // trivial: no imports
	assert.Equal(t, t_.TierUncertain, tiers["logic.py"])
	assert.Equal(t, t_.TierHighRisk, tiers["runner.py"])
	assert.Equal(t, t_.TierHighRisk, tiers["fetcher.py"])

	counts := tierCounts(tiers)
	assert.Equal(t, 3, counts["T1"])
	assert.Equal(t, 1, counts["T2"])
	assert.Equal(t, 2, counts["T3"])
}
