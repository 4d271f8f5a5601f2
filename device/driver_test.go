package device

import (
	"sort"
	"testing"
)

func resetRegistry() {
	registeredDrivers = [maxDrivers]*DriverInfo{}
	registeredDriverCount = 0
}

func TestDriverInfoListSorting(t *testing.T) {
	defer resetRegistry()

	origlist := []*DriverInfo{
		{Order: DetectOrderACPI},
		{Order: DetectOrderLast},
		{Order: DetectOrderBeforeACPI},
		{Order: DetectOrderEarly},
	}

	for _, drv := range origlist {
		RegisterDriver(drv)
	}

	registeredList := DriverList()
	if exp, got := len(origlist), len(registeredList); got != exp {
		t.Fatalf("expected DriverList() to return %d entries; got %d", exp, got)
	}

	sort.Sort(registeredList)
	expOrder := []int{3, 2, 0, 1}
	for i, exp := range expOrder {
		if registeredList[i] != origlist[exp] {
			t.Errorf("expected sorted entry %d to be %v; got %v", i, origlist[exp], registeredList[i])
		}
	}
}

func TestRegisterDriverCapacity(t *testing.T) {
	defer resetRegistry()

	for i := 0; i < maxDrivers+3; i++ {
		RegisterDriver(&DriverInfo{Order: DetectOrder(i)})
	}

	if exp, got := maxDrivers, len(DriverList()); got != exp {
		t.Fatalf("expected registry to hold %d drivers; got %d", exp, got)
	}
}
