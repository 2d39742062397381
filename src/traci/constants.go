package traci

// Protocol command identifiers. These mirror the TraCI constants
// published with SUMO; only the subset the backend drives is listed.
const (
	cmdGetVersion byte = 0x00
	cmdSimStep    byte = 0x02
	cmdSetOrder   byte = 0x03
	cmdClose      byte = 0x7F

	cmdGetSimVariable     byte = 0xab
	cmdGetVehicleVariable byte = 0xa4
	cmdSetVehicleVariable byte = 0xc4
	cmdGetRouteVariable   byte = 0xa6
	cmdSetRouteVariable   byte = 0xc6
	cmdGetPersonVariable  byte = 0xae
	cmdSetPersonVariable  byte = 0xce
)

// Status response result codes
const (
	statusOK             byte = 0x00
	statusNotImplemented byte = 0x01
	statusErr            byte = 0xFF
)

// Wire data types
const (
	typeUByte      byte = 0x07
	typeByte       byte = 0x08
	typeInteger    byte = 0x09
	typeDouble     byte = 0x0B
	typeString     byte = 0x0C
	typeStringList byte = 0x0E
	typeCompound   byte = 0x0F
)

// Variable identifiers
const (
	varIDList                 byte = 0x00
	varRoadID                 byte = 0x50
	varLaneID                 byte = 0x51
	varLanePosition           byte = 0x56
	varTime                   byte = 0x66
	varElectricityConsumption byte = 0x71
	varParameter              byte = 0x7e
	varAdd                    byte = 0x80
	varRemove                 byte = 0x81
	varAddFull                byte = 0x85
	varAppendStage            byte = 0xc4
	varPersonVehicle          byte = 0xc3
	varTaxiReservations       byte = 0xc6
	cmdTaxiDispatch           byte = 0x65
)

// Vehicle removal reason sent with varRemove
const removeVaporized byte = 3

// response command id for a get command
func responseFor(cmd byte) byte {
	return cmd | 0x10
}
